// Package inventory holds the authoritative pantry list and reconciles scan
// results and user edits into it.
package inventory

import "github.com/fridgely/pantry-scan-service/internal/detect"

// Source records how an entry entered the inventory.
type Source string

const (
	SourceScan   Source = "scan"
	SourceManual Source = "manual"
)

// AutoConfirmThreshold is the confidence above which a detected item is
// confirmed without user action.
const AutoConfirmThreshold = 0.95

// Entry is one pantry item. Identity is the ID; matching during
// reconciliation is by case-insensitive trimmed name. OriginalLabel keeps
// the model's first raw class name even after the user renames the entry and
// anchors feedback logging.
type Entry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Glyph         string   `json:"glyph"`
	Confirmed     bool     `json:"confirmed"`
	Source        Source   `json:"source,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	OriginalLabel string   `json:"originalLabel,omitempty"`
}

const placeholderGlyph = "❓"

var categoryGlyphs = map[detect.Category]string{
	detect.CategoryVegetable: "🥦",
	detect.CategoryFruit:     "🍎",
	detect.CategoryDairy:     "🥛",
	detect.CategoryProtein:   "🍗",
	detect.CategoryGrain:     "🍞",
}

// GlyphFor maps a detection category to its display glyph. Other and
// unmapped categories use a generic placeholder.
func GlyphFor(category detect.Category) string {
	if g, ok := categoryGlyphs[category]; ok {
		return g
	}
	return placeholderGlyph
}
