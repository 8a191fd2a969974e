// Package marker detects the read-more block in post bodies and computes
// the change a save makes to a post's marker tag.
package marker

import (
	"strings"

	"github.com/starford/readmore/internal/models"
)

// DefaultBlock is the registered name of the read-more block.
const DefaultBlock = "starford/read-more"

// Delta is the change a save applies to the marker tag.
type Delta int

const (
	// None leaves the tag as it is.
	None Delta = iota
	// Set adds the tag.
	Set
	// Clear removes the tag.
	Clear
)

// String returns the delta name used in logs and API responses.
func (d Delta) String() string {
	switch d {
	case Set:
		return "set"
	case Clear:
		return "clear"
	default:
		return "none"
	}
}

// Apply returns the tag state after applying d to current.
func (d Delta) Apply(current bool) bool {
	switch d {
	case Set:
		return true
	case Clear:
		return false
	default:
		return current
	}
}

// Detector finds serialized block comments for a single block name.
type Detector struct {
	Block string
}

// NewDetector returns a Detector for block, or DefaultBlock when empty.
func NewDetector(block string) Detector {
	block = strings.TrimSpace(block)
	if block == "" {
		block = DefaultBlock
	}
	return Detector{Block: block}
}

// Signature is the opening of the block's serialized comment delimiter.
// The trailing space separates the name from attributes or the closer,
// so "starford/read-more-list" does not match "starford/read-more".
func (d Detector) Signature() string {
	return "<!-- wp:" + d.Block + " "
}

// Contains reports whether body embeds the block.
func (d Detector) Contains(body string) bool {
	return strings.Contains(body, d.Signature())
}

// Reindex returns the tag change for a save of body given the current tag.
// Autosave and revision writes never change the tag.
func Reindex(current bool, body string, kind models.SaveKind, d Detector) Delta {
	if !kind.IsCanonical() {
		return None
	}
	found := d.Contains(body)
	switch {
	case found && !current:
		return Set
	case !found && current:
		return Clear
	default:
		return None
	}
}
