package engine

import (
	"fmt"

	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/persistence"
	"github.com/talgya/affirmation-tower/internal/tower"
)

// Snapshot is a read-only copy of everything the renderer observes.
type Snapshot struct {
	Session          uint64            `json:"session"`
	Phase            Phase             `json:"phase"`
	Mode             cards.Mode        `json:"mode,omitempty"`
	Deck             cards.Deck        `json:"deck"`
	CurrentCardIndex int               `json:"currentCardIndex"`
	CurrentCard      *cards.Card       `json:"currentCard"`
	Blocks           []tower.Block     `json:"blocks"`
	Stats            Stats             `json:"stats"`
	Stability        tower.Stability   `json:"stability"`
	Dust             []tower.Particle  `json:"dust"`
	Prefs            persistence.Prefs `json:"prefs"`
	Streak           int               `json:"streak"`
}

// Snapshot copies the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Session:          g.session,
		Phase:            g.phase,
		Mode:             g.mode,
		Deck:             append(cards.Deck{}, g.deck...),
		CurrentCardIndex: g.index,
		Blocks:           append([]tower.Block{}, g.blocks...),
		Stats:            g.stats,
		Stability:        g.stability,
		Dust:             append([]tower.Particle{}, g.dust...),
		Prefs:            g.prefs,
		Streak:           g.progress.DailyStreak,
	}
	s.Stats.TopAffirmations = append([]cards.Card{}, g.stats.TopAffirmations...)
	if g.index < len(g.deck) {
		card := g.deck[g.index]
		s.CurrentCard = &card
	}
	return s
}

// Badge is an award unlocked by a session score.
type Badge struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	MinScore int    `json:"minScore"`
	Unlocked bool   `json:"unlocked"`
}

var badges = []Badge{
	{ID: "rookie", Label: "Rookie Builder", MinScore: 10},
	{ID: "mindset", Label: "Mindset Master", MinScore: 50},
	{ID: "skyscraper", Label: "Skyscraper", MinScore: 100},
}

// Badges lists every badge, marking those score unlocks.
func Badges(score int) []Badge {
	out := make([]Badge, len(badges))
	for i, b := range badges {
		b.Unlocked = score >= b.MinScore
		out[i] = b
	}
	return out
}

// ShareText is the message offered for sharing a finished tower.
func ShareText(height, score int) string {
	return fmt.Sprintf("I stacked %d affirmations in Affirmation Tower! 🏗️✨\nScore: %d\n#AffirmationTower", height, score)
}

// SummaryAffirmations is how many kept affirmations the summary lists.
const SummaryAffirmations = 3

// Summary is the end-of-session recap.
type Summary struct {
	Phase           Phase        `json:"phase"`
	Collapsed       bool         `json:"collapsed"`
	Stats           Stats        `json:"stats"`
	Badges          []Badge      `json:"badges"`
	ShareText       string       `json:"shareText"`
	TopAffirmations []cards.Card `json:"topAffirmations"`
	BestHeight      int          `json:"bestHeight"`
	BestScore       int          `json:"bestScore"`
}

// Summary builds the recap for the current or just-finished session.
func (g *Game) Summary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	top := g.stats.TopAffirmations
	if len(top) > SummaryAffirmations {
		top = top[:SummaryAffirmations]
	}
	stats := g.stats
	stats.TopAffirmations = append([]cards.Card{}, g.stats.TopAffirmations...)

	return Summary{
		Phase:           g.phase,
		Collapsed:       g.collapsed,
		Stats:           stats,
		Badges:          Badges(g.stats.Score),
		ShareText:       ShareText(g.stats.TowerHeight, g.stats.Score),
		TopAffirmations: append([]cards.Card{}, top...),
		BestHeight:      g.progress.BestHeight,
		BestScore:       g.progress.BestScore,
	}
}
