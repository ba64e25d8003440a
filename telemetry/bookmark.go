package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkNonFinite      BookmarkType = "non_finite"
	BookmarkFlockFormed    BookmarkType = "flock_formed"
	BookmarkFlockScattered BookmarkType = "flock_scattered"
	BookmarkEdgePileup     BookmarkType = "edge_pileup"
)

// Polarization thresholds for flock formation, with hysteresis.
const (
	formedPolarization    = 0.9
	scatteredPolarization = 0.5
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments in the flock's evolution.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	sawNonFinite bool
	formed       bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkNonFinite(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkFormation(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkEdgePileup(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

// Reset clears history and state, e.g. after the flock is respawned.
func (bd *BookmarkDetector) Reset() {
	bd.historyIdx = 0
	bd.historyFull = false
	bd.sawNonFinite = false
	bd.formed = false
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkNonFinite fires once, the first time any boid goes NaN or Inf.
func (bd *BookmarkDetector) checkNonFinite(stats WindowStats) *Bookmark {
	if bd.sawNonFinite || stats.NonFinite == 0 {
		return nil
	}
	bd.sawNonFinite = true
	return &Bookmark{
		Type:        BookmarkNonFinite,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d of %d boids hold non-finite state", stats.NonFinite, stats.Boids),
	}
}

func (bd *BookmarkDetector) checkFormation(stats WindowStats) *Bookmark {
	switch {
	case !bd.formed && stats.Polarization >= formedPolarization:
		bd.formed = true
		return &Bookmark{
			Type:        BookmarkFlockFormed,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Polarization reached %.2f with spread %.1f", stats.Polarization, stats.Spread),
		}
	case bd.formed && stats.Polarization < scatteredPolarization:
		bd.formed = false
		return &Bookmark{
			Type:        BookmarkFlockScattered,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Polarization dropped to %.2f", stats.Polarization),
		}
	}
	return nil
}

// checkEdgePileup fires when edge corrections exceed twice the rolling average.
func (bd *BookmarkDetector) checkEdgePileup(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.EdgeTurns
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	cur := float64(stats.EdgeTurns)
	if cur > avg*2.0 && stats.EdgeTurns >= stats.Boids {
		return &Bookmark{
			Type:        BookmarkEdgePileup,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Edge turns %d are %.1fx average (%.0f)", stats.EdgeTurns, cur/avg, avg),
		}
	}
	return nil
}
