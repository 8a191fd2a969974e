package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/marker"
	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/query"
	"github.com/starford/readmore/internal/storage"
)

const markedBody = `<!-- wp:starford/read-more {"selectedPost":{"id":3}} /-->` + "\n<p>hello world</p>"

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "readmore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func contentFile(id int64, title, body string) string {
	return fmt.Sprintf("---\nid: %d\ntitle: %s\nstatus: publish\ndate: 2024-03-01\n---\n%s\n", id, title, body)
}

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func mustSave(t *testing.T, db *DB, p models.Post) SaveResult {
	t.Helper()
	res, err := db.SavePost(context.Background(), p, models.SaveCanonical)
	if err != nil {
		t.Fatalf("SavePost(%d): %v", p.ID, err)
	}
	return res
}

func ids(page *query.ResultPage) []int64 {
	out := []int64{}
	for _, p := range page.Items {
		out = append(out, p.ID)
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"posts", "post_markers", "post_revisions"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSavePost_MarkerTransitions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	post := models.Post{ID: 1, Title: "Hello", Body: markedBody, Status: models.StatusPublished}

	steps := []struct {
		body  string
		delta marker.Delta
		has   bool
	}{
		{markedBody, marker.Set, true},
		{markedBody, marker.None, true},
		{"<p>plain</p>", marker.Clear, false},
		{"<p>still plain</p>", marker.None, false},
		{markedBody, marker.Set, true},
	}
	for i, s := range steps {
		post.Body = s.body
		res := mustSave(t, db, post)
		if res.Delta != s.delta || res.HasMarker != s.has {
			t.Errorf("step %d: result = %+v, want delta %s has %v", i, res, s.delta, s.has)
		}
		got, err := db.HasMarker(ctx, 1)
		if err != nil {
			t.Fatalf("HasMarker: %v", err)
		}
		if got != s.has {
			t.Errorf("step %d: stored tag = %v, want %v", i, got, s.has)
		}
	}
}

func TestSavePost_NonCanonicalKeepsPostAndTag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustSave(t, db, models.Post{ID: 2, Title: "Draft", Body: "<p>plain</p>"})

	for _, kind := range []models.SaveKind{models.SaveAutosave, models.SaveRevision} {
		res, err := db.SavePost(ctx, models.Post{ID: 2, Title: "Autosaved", Body: markedBody}, kind)
		if err != nil {
			t.Fatalf("SavePost(%s): %v", kind, err)
		}
		if !res.Revision || res.Delta != marker.None || res.HasMarker {
			t.Errorf("%s: result = %+v", kind, res)
		}
	}

	has, _ := db.HasMarker(ctx, 2)
	if has {
		t.Error("non-canonical save changed the marker tag")
	}
	p, err := db.GetPost(ctx, 2)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p.Title != "Draft" {
		t.Errorf("title = %q, non-canonical save touched the post", p.Title)
	}
	revs, err := db.Revisions(ctx, 2)
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revs) != 2 || revs[0].Kind != models.SaveAutosave || revs[1].Kind != models.SaveRevision {
		t.Errorf("revisions = %+v", revs)
	}
}

func TestSavePost_RejectsMissingID(t *testing.T) {
	db := testDB(t)
	if _, err := db.SavePost(context.Background(), models.Post{Title: "x"}, models.SaveCanonical); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestSavePost_CustomBlock(t *testing.T) {
	db := testDB(t, WithDetector(marker.NewDetector("acme/teaser")))
	res := mustSave(t, db, models.Post{ID: 3, Body: markedBody})
	if res.Delta != marker.None {
		t.Errorf("default block should not match a custom detector: %+v", res)
	}
	res = mustSave(t, db, models.Post{ID: 3, Body: "<!-- wp:acme/teaser /-->"})
	if res.Delta != marker.Set {
		t.Errorf("custom block not detected: %+v", res)
	}
}

func TestDeletePost(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustSave(t, db, models.Post{ID: 4, Body: markedBody, Status: models.StatusPublished})
	_, _ = db.SavePost(ctx, models.Post{ID: 4, Body: "x"}, models.SaveAutosave)

	if err := db.DeletePost(ctx, 4); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, err := db.GetPost(ctx, 4); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetPost after delete: err = %v", err)
	}
	if _, err := db.HasMarker(ctx, 4); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("HasMarker after delete: err = %v", err)
	}
	var tagged int
	_ = db.conn.QueryRow(`SELECT count(*) FROM post_markers WHERE post_id = 4`).Scan(&tagged)
	if tagged != 0 {
		t.Error("marker row survived delete")
	}
	if revs, _ := db.Revisions(ctx, 4); len(revs) != 0 {
		t.Errorf("revisions survived delete: %d", len(revs))
	}
	if err := db.DeletePost(ctx, 4); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestFind_MarkerInRange(t *testing.T) {
	db := testDB(t)
	posts := []struct {
		id     int64
		marked bool
		status models.Status
		at     time.Time
	}{
		{1, true, models.StatusPublished, day(2024, 3, 1, 9, 0)},
		{2, true, models.StatusPublished, day(2024, 3, 15, 23, 59)},
		{3, true, models.StatusPublished, day(2024, 3, 16, 0, 0)},
		{4, true, models.StatusPublished, day(2024, 2, 14, 0, 0)},
		{5, true, models.StatusPublished, day(2024, 2, 13, 23, 59)},
		{6, false, models.StatusPublished, day(2024, 3, 1, 9, 0)},
		{7, true, models.StatusDraft, day(2024, 3, 1, 9, 0)},
	}
	for _, p := range posts {
		body := "<p>plain</p>"
		if p.marked {
			body = markedBody
		}
		mustSave(t, db, models.Post{ID: p.id, Body: body, Status: p.status, PublishedAt: p.at})
	}

	spec, rng, warnings := query.PlanBatch(query.BatchInput{Now: day(2024, 3, 15, 12, 0)})
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if rng.String() != "2024-02-14..2024-03-15" {
		t.Fatalf("range = %s", rng)
	}

	page, err := db.Find(context.Background(), spec)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := ids(page), []int64{4, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if page.Items[0].Title != "" {
		t.Error("id projection returned summary columns")
	}
	n, err := db.Count(context.Background(), spec)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestFind_TextSearch(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, models.Post{ID: 10, Title: "Hello World", Body: "<p>first</p>", Status: models.StatusPublished, PublishedAt: day(2024, 1, 1, 0, 0)})
	mustSave(t, db, models.Post{ID: 11, Title: "Other", Body: "<p>says hello again</p>", Status: models.StatusPublished, PublishedAt: day(2024, 1, 3, 0, 0)})
	mustSave(t, db, models.Post{ID: 12, Title: "Hello draft", Body: "", Status: models.StatusDraft, PublishedAt: day(2024, 1, 2, 0, 0)})
	mustSave(t, db, models.Post{ID: 13, Title: "Current hello", Body: "", Status: models.StatusPublished, PublishedAt: day(2024, 1, 4, 0, 0)})
	mustSave(t, db, models.Post{ID: 14, Title: "Unrelated", Body: "<p>nothing</p>", Status: models.StatusPublished, PublishedAt: day(2024, 1, 5, 0, 0)})

	plan := query.PlanEditor(query.EditorInput{Term: "HELLO", CurrentPostID: 13})
	page, err := db.Find(context.Background(), plan.Search)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := ids(page), []int64{11, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if page.Items[0].Title != "Other" || page.Items[0].Body == "" {
		t.Errorf("summary projection incomplete: %+v", page.Items[0])
	}

	empty := query.PlanEditor(query.EditorInput{Term: "", CurrentPostID: 13})
	page, err = db.Find(context.Background(), empty.Search)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := ids(page), []int64{14, 11, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("empty term ids = %v, want newest first %v", got, want)
	}
}

func TestFind_IdentifierLookup(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, models.Post{ID: 20, Title: "Twenty", Status: models.StatusPublished})
	mustSave(t, db, models.Post{ID: 21, Title: "Draft", Status: models.StatusDraft})

	plan := query.PlanEditor(query.EditorInput{Term: "20"})
	if plan.Lookup == nil {
		t.Fatal("expected an identifier lookup")
	}
	page, err := db.Find(context.Background(), *plan.Lookup)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got := ids(page); !reflect.DeepEqual(got, []int64{20}) {
		t.Errorf("ids = %v", got)
	}

	plan = query.PlanEditor(query.EditorInput{Term: "21"})
	page, _ = db.Find(context.Background(), *plan.Lookup)
	if len(page.Items) != 0 {
		t.Errorf("draft returned by lookup: %v", ids(page))
	}
}

func TestFind_Pagination(t *testing.T) {
	db := testDB(t)
	for i := int64(1); i <= 12; i++ {
		mustSave(t, db, models.Post{ID: i, Title: "page test", Status: models.StatusPublished})
	}
	spec := query.Spec{Filter: query.TextSearch{Term: "page"}, Status: models.StatusPublished, Page: 3, PageSize: 5}
	page, err := db.Find(context.Background(), spec)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := ids(page), []int64{2, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("page 3 ids = %v, want %v", got, want)
	}
	if page.Full() {
		t.Error("short page reported full")
	}
	n, _ := db.Count(context.Background(), spec)
	if n != 12 {
		t.Errorf("Count = %d", n)
	}
}

func TestFind_RejectsZeroPageSize(t *testing.T) {
	db := testDB(t)
	if _, err := db.Find(context.Background(), query.Spec{Page: 1}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestSummaryCache(t *testing.T) {
	db := testDB(t, WithCacheSize(8))
	ctx := context.Background()
	mustSave(t, db, models.Post{ID: 30, Title: "Cached", Status: models.StatusPublished})

	skip := query.Spec{Filter: query.TextSearch{}, Page: 1, PageSize: 5, SkipCache: true}
	if _, err := db.Find(ctx, skip); err != nil {
		t.Fatal(err)
	}
	if db.cache.len() != 0 {
		t.Errorf("SkipCache query populated the cache")
	}

	skip.SkipCache = false
	if _, err := db.Find(ctx, skip); err != nil {
		t.Fatal(err)
	}
	if _, ok := db.cache.get(30); !ok {
		t.Fatal("summary query did not populate the cache")
	}

	mustSave(t, db, models.Post{ID: 30, Title: "Renamed", Status: models.StatusPublished})
	p, err := db.GetPost(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Renamed" {
		t.Errorf("stale cache entry served after save: %q", p.Title)
	}
}

func TestSummaryCache_SeesOtherHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	open := func() *DB {
		db, err := Open(path, WithCacheSize(8))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}
	reader, writer := open(), open()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mustSave(t, writer, models.Post{ID: 60, Title: "First", Status: models.StatusPublished, ModifiedAt: base})
	mustSave(t, writer, models.Post{ID: 61, Title: "Doomed", Status: models.StatusPublished, ModifiedAt: base})

	spec := query.Spec{Filter: query.TextSearch{}, Page: 1, PageSize: 5}
	if _, err := reader.Find(ctx, spec); err != nil {
		t.Fatal(err)
	}
	if p, err := reader.GetPost(ctx, 60); err != nil || p.Title != "First" {
		t.Fatalf("cached read = %+v, %v", p, err)
	}

	mustSave(t, writer, models.Post{ID: 60, Title: "Second", Status: models.StatusPublished, ModifiedAt: base.Add(time.Minute)})
	if err := writer.DeletePost(ctx, 61); err != nil {
		t.Fatal(err)
	}

	p, err := reader.GetPost(ctx, 60)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Second" {
		t.Errorf("title = %q, want the other handle's update", p.Title)
	}
	if _, err := reader.GetPost(ctx, 61); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted post: err = %v, want ErrNotFound", err)
	}
	if _, ok := reader.cache.get(61); ok {
		t.Error("deleted post left in the cache")
	}
}

func TestSync_ImportsAndForgets(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	ctx := context.Background()
	logger := quietLogger()

	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.html", contentFile(40, "Alpha", markedBody))
	write("b.html", contentFile(41, "Beta", "<p>plain</p>"))
	write("auto.html", "---\nid: 41\nsave: autosave\n---\n"+markedBody)
	write("broken.html", "<p>no frontmatter</p>")

	stats, err := Sync(ctx, db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Imported != 3 || stats.Failed != 1 {
		t.Errorf("first sync stats = %+v", stats)
	}
	if has, _ := db.HasMarker(ctx, 40); !has {
		t.Error("imported marked post not tagged")
	}
	if has, _ := db.HasMarker(ctx, 41); has {
		t.Error("autosave file tagged its post")
	}

	stats, err = Sync(ctx, db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Imported != 0 || stats.Skipped != 3 {
		t.Errorf("second sync stats = %+v", stats)
	}
	if revs, _ := db.Revisions(ctx, 41); len(revs) != 1 {
		t.Errorf("unchanged autosave file re-imported: %d revisions", len(revs))
	}

	if err := os.Remove(filepath.Join(dir, "a.html")); err != nil {
		t.Fatal(err)
	}
	stats, err = Sync(ctx, db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Removed != 1 {
		t.Errorf("third sync stats = %+v", stats)
	}
	if _, err := db.GetPost(ctx, 40); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("post from removed file still present: %v", err)
	}
}

func TestSavePost_KeepsPublishedAtWhenOmitted(t *testing.T) {
	db := testDB(t)
	at := day(2023, 6, 1, 8, 30)
	mustSave(t, db, models.Post{ID: 50, Title: "v1", PublishedAt: at})
	mustSave(t, db, models.Post{ID: 50, Title: "v2"})

	p, err := db.GetPost(context.Background(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "v2" || !p.PublishedAt.Equal(at) {
		t.Errorf("post = %+v, want title v2 published %v", p, at)
	}
}
