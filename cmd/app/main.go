package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/readmore/internal"
	pkgconfig "github.com/starford/readmore/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func scan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	args := internal.ScanArgs{
		Before:    cmd.String("date-before"),
		After:     cmd.String("date-after"),
		StartPage: int(cmd.Int("start-page")),
	}
	if err := internal.RunScan(ctx, args, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}

func importContent(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunImport(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("import error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "readmore",
		Usage:  "Read-more block index, post search and marker scan",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:  "scan",
				Usage: "Print the IDs of published posts that embed the read-more block",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date-before",
						Usage: "Upper date bound (YYYY-MM-DD, inclusive); defaults to today",
					},
					&cli.StringFlag{
						Name:  "date-after",
						Usage: "Lower date bound (YYYY-MM-DD, inclusive); defaults to 30 days before today",
					},
					&cli.IntFlag{
						Name:  "start-page",
						Usage: "Resume the scan from this page",
						Value: 1,
					},
				},
				Action: scan,
			},
			{
				Name:   "import",
				Usage:  "Sync the content directory into the database once",
				Action: importContent,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
