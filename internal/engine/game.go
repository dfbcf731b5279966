// Package engine is the game state machine. It owns the session: deck, tower,
// stats and phase. Renderers read a Snapshot and drive play through the
// exported actions; every action is serialized on a single lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/persistence"
	"github.com/talgya/affirmation-tower/internal/tower"
)

// Phase is the engine-owned screen state.
type Phase string

const (
	PhaseLanding Phase = "LANDING"
	PhaseCard    Phase = "CARD"
	PhaseEnd     Phase = "END"

	// Reserved; no transition reaches these yet.
	PhaseDrop        Phase = "DROP"
	PhaseTower       Phase = "TOWER"
	PhaseTowerReview Phase = "TOWER_REVIEW"
)

// Direction is a swipe gesture already resolved by the renderer.
type Direction string

const (
	Left  Direction = "LEFT"
	Right Direction = "RIGHT"
)

// Valid reports whether d is LEFT or RIGHT.
func (d Direction) Valid() bool {
	return d == Left || d == Right
}

// Result is the outcome of one swipe.
type Result string

const (
	Correct Result = "CORRECT"
	Wrong   Result = "WRONG"
)

// Score awards.
const (
	AffirmationPoints = 10
	RejectionPoints   = 5
)

// ErrInvalidMode is returned by StartGame for an unknown mode.
var ErrInvalidMode = errors.New("invalid mode")

// Stats is the session-scoped aggregate shown to the player.
type Stats struct {
	Score           int          `json:"score"`
	PerfectDrops    int          `json:"perfectDrops"`
	TopAffirmations []cards.Card `json:"topAffirmations"`
	TowerHeight     int          `json:"towerHeight"`
}

// Options configures a Game. Catalog and Store are required.
type Options struct {
	Catalog   *cards.Catalog
	Store     *persistence.Store
	Rand      *rand.Rand       // Defaults to a time-seeded source
	Scheduler Scheduler        // Defaults to WallClock
	Now       func() time.Time // Defaults to time.Now
}

// Game is the single-writer state container for one player.
type Game struct {
	mu sync.Mutex

	catalog *cards.Catalog
	store   *persistence.Store
	rng     *rand.Rand
	sched   Scheduler
	now     func() time.Time

	phase     Phase
	mode      cards.Mode
	deck      cards.Deck
	index     int
	blocks    []tower.Block
	stats     Stats
	stability tower.Stability
	collapsed bool
	dust      []tower.Particle

	// session increments on every start and reset; timers carry the value
	// they were scheduled under.
	session uint64
	active  bool
	timers  []Timer

	prefs    persistence.Prefs
	progress persistence.Progress
}

// NewGame creates a game in phase LANDING with prefs and progress loaded
// from the store, or their defaults if the store has nothing usable.
func NewGame(ctx context.Context, opts Options) (*Game, error) {
	if opts.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Scheduler == nil {
		opts.Scheduler = WallClock{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Game{
		catalog:  opts.Catalog,
		store:    opts.Store,
		rng:      opts.Rand,
		sched:    opts.Scheduler,
		now:      opts.Now,
		phase:    PhaseLanding,
		prefs:    opts.Store.PrefsOrDefault(ctx),
		progress: opts.Store.ProgressOrDefault(ctx),
	}, nil
}

// StartGame deals a fresh deck for mode, clears the tower, records the play
// day and moves to CARD. Timers from any earlier session are cancelled.
func (g *Game) StartGame(ctx context.Context, mode cards.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.newSession()
	g.mode = mode
	g.deck = cards.NewDeck(g.catalog, mode, g.rng)
	g.active = true

	progress, changed := g.progress.WithPlay(g.now())
	g.progress = progress
	if changed {
		if err := g.store.SaveProgress(ctx, progress); err != nil {
			slog.Error("failed to save streak", "error", err)
		}
	}

	g.phase = PhaseCard
	slog.Info("session started",
		"session", g.session,
		"mode", mode,
		"deck", len(g.deck),
		"streak", g.progress.DailyStreak,
	)
	return nil
}

// SwipeCard applies the decision matrix to the current card.
// Without a current card it returns Wrong and changes nothing.
func (g *Game) SwipeCard(dir Direction) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseCard || g.index >= len(g.deck) || !dir.Valid() {
		return Wrong
	}
	card := g.deck[g.index]

	var (
		result Result
		kind   tower.Kind
	)
	switch {
	case card.Type == cards.TypeAffirmation && dir == Right:
		g.stats.Score += AffirmationPoints
		g.stats.TopAffirmations = append(g.stats.TopAffirmations, card)
		kind, result = tower.KindStable, Correct
	case card.Type == cards.TypeAffirmation && dir == Left:
		result = Wrong
	case card.Type == cards.TypeNegative && dir == Left:
		g.stats.Score += RejectionPoints
		result = Correct
	default: // negative kept
		kind, result = tower.KindUnstable, Wrong
	}

	if kind != "" {
		g.addBlock(tower.Place(kind, card, g.blocks, g.rng))
	}

	g.index++
	if g.index == len(g.deck) {
		g.schedule(EndOfDeckDelay, func() {
			g.endLocked(context.Background(), g.collapsed)
		})
	}
	return result
}

// addBlock appends b and re-evaluates stability. Caller must hold g.mu.
func (g *Game) addBlock(b tower.Block) {
	g.blocks = append(g.blocks, b)
	g.stats.TowerHeight++
	if b.Kind() == tower.KindStable {
		g.stats.PerfectDrops++
	}

	g.stability = tower.Compute(g.blocks)
	if g.stability.Collapsed && !g.collapsed {
		g.collapse()
	}
}

// collapse latches the topple and schedules its aftermath. It runs at most
// once per session. Caller must hold g.mu.
func (g *Game) collapse() {
	g.collapsed = true
	seed := g.rng.Int63()
	slog.Info("tower collapsed",
		"session", g.session,
		"unstable", g.stability.UnstableCount,
		"height", len(g.blocks),
	)

	g.schedule(DustDelay, func() {
		g.dust = tower.Dust(seed)
	})
	g.schedule(CollapseDelay, func() {
		g.endLocked(context.Background(), true)
	})
}

// EndGame finishes the session and moves to END. A session that ends
// without collapsing is saved to the tower history. Only the first call in
// a session persists anything.
func (g *Game) EndGame(ctx context.Context, collapsed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endLocked(ctx, collapsed)
}

func (g *Game) endLocked(ctx context.Context, collapsed bool) {
	g.phase = PhaseEnd
	if !g.active {
		return
	}
	g.active = false

	slog.Info("session ended",
		"session", g.session,
		"collapsed", collapsed,
		"height", g.stats.TowerHeight,
		"score", g.stats.Score,
	)
	if collapsed {
		return
	}

	saved := persistence.SavedTower{
		ID:      uuid.NewString(),
		DateISO: g.now().UTC().Format(persistence.ISOLayout),
		Mode:    g.mode,
		Height:  g.stats.TowerHeight,
		Score:   g.stats.Score,
		Blocks:  append([]tower.Block(nil), g.blocks...),
	}
	g.progress = g.progress.WithTower(saved)
	if err := g.store.SaveProgress(ctx, g.progress); err != nil {
		slog.Error("failed to save tower", "tower", saved.ID, "error", err)
	}
}

// ResetGame discards the session and returns to LANDING.
func (g *Game) ResetGame() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.newSession()
	g.phase = PhaseLanding
}

// newSession cancels pending timers and clears session state.
// Caller must hold g.mu.
func (g *Game) newSession() {
	g.cancelTimers()
	g.session++
	g.active = false
	g.mode = ""
	g.deck = nil
	g.index = 0
	g.blocks = nil
	g.stats = Stats{}
	g.stability = tower.Stability{}
	g.collapsed = false
	g.dust = nil
}

// UpdatePrefs merges patch into the in-memory prefs and writes the result.
// Only validation failures are returned; a failed write keeps the change in
// memory and the next successful write carries it.
func (g *Game) UpdatePrefs(ctx context.Context, patch persistence.PrefsPatch) (persistence.Prefs, error) {
	if err := patch.Validate(); err != nil {
		return persistence.Prefs{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prefs = patch.Apply(g.prefs)
	if err := g.store.PutPrefs(ctx, g.prefs); err != nil {
		slog.Error("failed to save prefs", "error", err)
	}
	return g.prefs, nil
}

// ResetProgress erases stored prefs and progress. The current session, if
// any, continues.
func (g *Game) ResetProgress(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.Reset(ctx); err != nil {
		return err
	}
	g.prefs = persistence.DefaultPrefs()
	g.progress = persistence.DefaultProgress()
	slog.Info("progress reset")
	return nil
}

// Prefs returns the in-memory prefs.
func (g *Game) Prefs() persistence.Prefs {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prefs
}

// Progress returns a copy of the in-memory progress.
func (g *Game) Progress() persistence.Progress {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.progress
	p.Towers = append([]persistence.SavedTower{}, g.progress.Towers...)
	return p
}
