package persistence

import (
	"fmt"
	"time"

	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/tower"
)

// Record keys.
const (
	KeyPrefs    = "affirmationTower.prefs"
	KeyProgress = "affirmationTower.progress"
)

// MaxSavedTowers caps the tower history, newest first.
const MaxSavedTowers = 50

const (
	dateLayout = "2006-01-02"
	// ISOLayout formats timestamps as UTC with milliseconds, e.g.
	// 2024-03-10T23:30:00.000Z.
	ISOLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Theme is the renderer color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Prefs are display preferences. The engine only stores and passes them through.
type Prefs struct {
	Theme         Theme   `json:"theme"`
	FontScale     float64 `json:"fontScale"`
	HighContrast  bool    `json:"highContrast"`
	ReducedMotion bool    `json:"reducedMotion"`
}

// DefaultPrefs returns the preferences used when nothing valid is stored.
func DefaultPrefs() Prefs {
	return Prefs{
		Theme:     ThemeDark,
		FontScale: 1,
	}
}

// PrefsPatch is a partial Prefs update; nil fields are left unchanged.
type PrefsPatch struct {
	Theme         *Theme   `json:"theme,omitempty"`
	FontScale     *float64 `json:"fontScale,omitempty"`
	HighContrast  *bool    `json:"highContrast,omitempty"`
	ReducedMotion *bool    `json:"reducedMotion,omitempty"`
}

// Validate rejects values the renderer cannot use.
func (p PrefsPatch) Validate() error {
	if p.Theme != nil && *p.Theme != ThemeLight && *p.Theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", *p.Theme)
	}
	if p.FontScale != nil && *p.FontScale <= 0 {
		return fmt.Errorf("fontScale must be positive, got %v", *p.FontScale)
	}
	return nil
}

// Apply returns prefs with the patch's set fields overriding it.
func (p PrefsPatch) Apply(prefs Prefs) Prefs {
	if p.Theme != nil {
		prefs.Theme = *p.Theme
	}
	if p.FontScale != nil {
		prefs.FontScale = *p.FontScale
	}
	if p.HighContrast != nil {
		prefs.HighContrast = *p.HighContrast
	}
	if p.ReducedMotion != nil {
		prefs.ReducedMotion = *p.ReducedMotion
	}
	return prefs
}

// SavedTower is a snapshot of a tower that finished without collapsing.
type SavedTower struct {
	ID      string        `json:"id"`
	DateISO string        `json:"dateISO"`
	Mode    cards.Mode    `json:"mode"`
	Height  int           `json:"height"`
	Score   int           `json:"score"`
	Blocks  []tower.Block `json:"blocks"`
}

// Progress is the session-independent record of streaks and bests.
type Progress struct {
	DailyStreak       int          `json:"dailyStreak"`
	LastPlayedISODate *string      `json:"lastPlayedISODate"` // nil before the first session
	BestHeight        int          `json:"bestHeight"`
	BestScore         int          `json:"bestScore"`
	Towers            []SavedTower `json:"towers"` // Newest first, at most MaxSavedTowers
}

// DefaultProgress returns the progress used when nothing valid is stored.
func DefaultProgress() Progress {
	return Progress{Towers: []SavedTower{}}
}

// WithTower returns p with t prepended to the history, trimmed to the newest
// MaxSavedTowers, and with the best height and score raised to t's.
func (p Progress) WithTower(t SavedTower) Progress {
	towers := make([]SavedTower, 0, len(p.Towers)+1)
	towers = append(towers, t)
	towers = append(towers, p.Towers...)
	if len(towers) > MaxSavedTowers {
		towers = towers[:MaxSavedTowers]
	}
	p.Towers = towers
	p.BestHeight = max(p.BestHeight, t.Height)
	p.BestScore = max(p.BestScore, t.Score)
	return p
}

// WithPlay returns p updated for a play at now, compared by UTC date.
// A play on the same date as the last one changes nothing, a play on the
// following date extends the streak, and anything else starts a streak of 1.
func (p Progress) WithPlay(now time.Time) (Progress, bool) {
	now = now.UTC()
	last, ok := playedDate(p.LastPlayedISODate)
	if ok && last == now.Format(dateLayout) {
		return p, false
	}

	if ok && last == now.AddDate(0, 0, -1).Format(dateLayout) {
		p.DailyStreak++
	} else {
		p.DailyStreak = 1
	}
	stamp := now.Format(ISOLayout)
	p.LastPlayedISODate = &stamp
	return p, true
}

// playedDate extracts the UTC calendar date from a stored timestamp.
func playedDate(stamp *string) (string, bool) {
	if stamp == nil || *stamp == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339, *stamp); err == nil {
		return t.UTC().Format(dateLayout), true
	}
	if len(*stamp) >= len(dateLayout) {
		return (*stamp)[:len(dateLayout)], true
	}
	return "", false
}
