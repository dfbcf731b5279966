package engine

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/persistence"
	"github.com/talgya/affirmation-tower/internal/tower"
)

type fakeTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
	sched   *fakeScheduler
}

func (t *fakeTimer) Stop() bool {
	if t.sched.ignoreStop || t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler fires callbacks synchronously from Advance.
type fakeScheduler struct {
	now        time.Duration
	timers     []*fakeTimer
	ignoreStop bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: s.now + d, fn: f, sched: s}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	end := s.now + d
	for {
		var next *fakeTimer
		for _, t := range s.timers {
			if t.fired || t.stopped || t.at > end {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.at
		next.fired = true
		next.fn()
	}
	s.now = end
}

func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type harness struct {
	game  *Game
	sched *fakeScheduler
	store *persistence.Store
	db    *persistence.DB
	path  string
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tower.db")
	db, err := persistence.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		sched: &fakeScheduler{},
		db:    db,
		path:  path,
		clock: &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.store = persistence.NewStore(db, h.clock.now)
	h.game = h.newGame(t)
	return h
}

// newGame builds a game over the harness store, loading whatever it holds.
func (h *harness) newGame(t *testing.T) *Game {
	t.Helper()
	catalog, err := cards.Default()
	require.NoError(t, err)
	g, err := NewGame(context.Background(), Options{
		Catalog:   catalog,
		Store:     h.store,
		Rand:      rand.New(rand.NewSource(7)),
		Scheduler: h.sched,
		Now:       h.clock.now,
	})
	require.NoError(t, err)
	return g
}

// blockWrites makes every record write fail until the returned func runs.
func (h *harness) blockWrites(t *testing.T) (unblock func()) {
	t.Helper()
	conn, err := sqlx.Open("sqlite", h.path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TRIGGER block_writes BEFORE INSERT ON records
		BEGIN SELECT RAISE(FAIL, 'writes blocked'); END`)
	require.NoError(t, err)
	return func() {
		_, err := conn.Exec(`DROP TRIGGER block_writes`)
		require.NoError(t, err)
	}
}

func current(t *testing.T, g *Game) cards.Card {
	t.Helper()
	s := g.Snapshot()
	require.NotNil(t, s.CurrentCard, "deck exhausted")
	return *s.CurrentCard
}

// skipUntil swipes LEFT past cards until the current card has type typ.
// LEFT never produces a block.
func skipUntil(t *testing.T, g *Game, typ cards.CardType) cards.Card {
	t.Helper()
	for {
		c := current(t, g)
		if c.Type == typ {
			return c
		}
		g.SwipeCard(Left)
	}
}

// stackUntilNegative keeps affirmations, adding stable blocks, until the
// current card is negative.
func stackUntilNegative(t *testing.T, g *Game) {
	t.Helper()
	for current(t, g).Type != cards.TypeNegative {
		g.SwipeCard(Right)
	}
}

// playClean answers every remaining card correctly.
func playClean(t *testing.T, g *Game) {
	t.Helper()
	for g.Snapshot().CurrentCard != nil {
		if current(t, g).Type == cards.TypeAffirmation {
			require.Equal(t, Correct, g.SwipeCard(Right))
		} else {
			require.Equal(t, Correct, g.SwipeCard(Left))
		}
	}
}

func TestNewGameStartsOnLanding(t *testing.T) {
	h := newHarness(t)
	s := h.game.Snapshot()
	assert.Equal(t, PhaseLanding, s.Phase)
	assert.Empty(t, s.Deck)
	assert.Nil(t, s.CurrentCard)
	assert.Equal(t, persistence.DefaultPrefs(), s.Prefs)
}

func TestNewGameLoadsStoredState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	light := persistence.ThemeLight
	stored, err := h.store.SavePrefs(ctx, persistence.PrefsPatch{Theme: &light})
	require.NoError(t, err)
	_, err = h.store.UpdateStreak(ctx)
	require.NoError(t, err)
	h.clock.t = h.clock.t.AddDate(0, 0, 1)
	_, err = h.store.AddTower(ctx, persistence.SavedTower{ID: "t1", Height: 4, Score: 40})
	require.NoError(t, err)
	_, err = h.store.UpdateStreak(ctx)
	require.NoError(t, err)

	g := h.newGame(t)
	s := g.Snapshot()
	assert.Equal(t, PhaseLanding, s.Phase)
	assert.Equal(t, stored, s.Prefs)
	assert.Equal(t, persistence.ThemeLight, s.Prefs.Theme)
	assert.Equal(t, 2, s.Streak)
	progress := g.Progress()
	require.Len(t, progress.Towers, 1)
	assert.Equal(t, 4, progress.BestHeight)
	assert.Equal(t, 40, progress.BestScore)
}

func TestNewGameRequiresCollaborators(t *testing.T) {
	_, err := NewGame(context.Background(), Options{})
	assert.Error(t, err)
}

func TestStartGame(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))

	s := h.game.Snapshot()
	assert.Equal(t, PhaseCard, s.Phase)
	assert.Equal(t, cards.ModeDaily, s.Mode)
	require.Len(t, s.Deck, cards.DeckSizeDaily)
	neg, aff := s.Deck.Counts()
	assert.Equal(t, 4, neg)
	assert.Equal(t, 8, aff)
	assert.Equal(t, 0, s.CurrentCardIndex)
	assert.Empty(t, s.Blocks)
	assert.Equal(t, 1, s.Streak)
}

func TestStartGameRejectsUnknownMode(t *testing.T) {
	h := newHarness(t)
	err := h.game.StartGame(context.Background(), cards.Mode("ENDLESS"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, PhaseLanding, h.game.Snapshot().Phase)
}

func TestSwipeAffirmationRight(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))
	card := skipUntil(t, h.game, cards.TypeAffirmation)
	before := h.game.Snapshot()

	assert.Equal(t, Correct, h.game.SwipeCard(Right))

	after := h.game.Snapshot()
	assert.Equal(t, before.Stats.Score+AffirmationPoints, after.Stats.Score)
	require.Len(t, after.Blocks, len(before.Blocks)+1)
	block := after.Blocks[len(after.Blocks)-1]
	assert.Equal(t, tower.WidthStable, block.Width)
	assert.Equal(t, card.ID, block.CardID)
	require.NotEmpty(t, after.Stats.TopAffirmations)
	assert.Equal(t, card, after.Stats.TopAffirmations[len(after.Stats.TopAffirmations)-1])
	assert.Equal(t, before.Stats.PerfectDrops+1, after.Stats.PerfectDrops)
	assert.Equal(t, before.CurrentCardIndex+1, after.CurrentCardIndex)
}

func TestSwipeAffirmationLeft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))
	skipUntil(t, h.game, cards.TypeAffirmation)
	before := h.game.Snapshot()

	assert.Equal(t, Wrong, h.game.SwipeCard(Left))

	after := h.game.Snapshot()
	assert.Equal(t, before.Stats.Score, after.Stats.Score)
	assert.Len(t, after.Blocks, len(before.Blocks))
	assert.Equal(t, before.CurrentCardIndex+1, after.CurrentCardIndex)
}

func TestSwipeNegativeRight(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))
	skipUntil(t, h.game, cards.TypeNegative)
	before := h.game.Snapshot()

	assert.Equal(t, Wrong, h.game.SwipeCard(Right))

	after := h.game.Snapshot()
	assert.Equal(t, before.Stats.Score, after.Stats.Score)
	require.Len(t, after.Blocks, len(before.Blocks)+1)
	block := after.Blocks[len(after.Blocks)-1]
	assert.Equal(t, tower.WidthUnstable, block.Width)
	assert.GreaterOrEqual(t, math.Abs(block.X), 40.0)
	assert.Equal(t, before.Stats.PerfectDrops, after.Stats.PerfectDrops)
	assert.Equal(t, len(after.Blocks), after.Stats.TowerHeight)
}

func TestSwipeNegativeLeft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))
	skipUntil(t, h.game, cards.TypeNegative)
	before := h.game.Snapshot()

	assert.Equal(t, Correct, h.game.SwipeCard(Left))

	after := h.game.Snapshot()
	assert.Equal(t, before.Stats.Score+RejectionPoints, after.Stats.Score)
	assert.Len(t, after.Blocks, len(before.Blocks))
}

func TestSwipeWithoutCardChangesNothing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Wrong, h.game.SwipeCard(Right), "no session")

	require.NoError(t, h.game.StartGame(context.Background(), cards.ModeDaily))
	before := h.game.Snapshot()
	assert.Equal(t, Wrong, h.game.SwipeCard(Direction("UP")))
	assert.Equal(t, before, h.game.Snapshot())

	playClean(t, h.game)
	end := h.game.Snapshot()
	assert.Equal(t, Wrong, h.game.SwipeCard(Right), "deck exhausted")
	assert.Equal(t, end, h.game.Snapshot())
}

func TestEndOfDeckSavesTower(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	playClean(t, h.game)

	s := h.game.Snapshot()
	assert.Equal(t, PhaseCard, s.Phase)
	assert.Equal(t, cards.DeckSizeDaily, s.CurrentCardIndex)
	assert.Equal(t, 8*AffirmationPoints+4*RejectionPoints, s.Stats.Score)
	assert.Equal(t, 8, s.Stats.TowerHeight)
	assert.Equal(t, 8, s.Stats.PerfectDrops)
	assert.False(t, s.Stability.Collapsed)

	h.sched.Advance(EndOfDeckDelay - time.Millisecond)
	assert.Equal(t, PhaseCard, h.game.Snapshot().Phase)
	h.sched.Advance(time.Millisecond)
	assert.Equal(t, PhaseEnd, h.game.Snapshot().Phase)

	progress, err := h.store.LoadProgress(ctx)
	require.NoError(t, err)
	require.Len(t, progress.Towers, 1)
	saved := progress.Towers[0]
	assert.Equal(t, cards.ModeDaily, saved.Mode)
	assert.Equal(t, 8, saved.Height)
	assert.Equal(t, 100, saved.Score)
	assert.Len(t, saved.Blocks, 8)
	assert.Equal(t, "2024-06-01T09:00:00.000Z", saved.DateISO)
	assert.Equal(t, 8, progress.BestHeight)
	assert.Equal(t, 100, progress.BestScore)
	assert.Equal(t, progress, h.game.Progress())
}

func TestEndGameThreadsMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeFree))
	h.game.EndGame(ctx, false)

	progress := h.game.Progress()
	require.Len(t, progress.Towers, 1)
	assert.Equal(t, cards.ModeFree, progress.Towers[0].Mode)
}

func TestEndGameOncePerSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))

	h.game.EndGame(ctx, false)
	h.game.EndGame(ctx, false)
	h.game.EndGame(ctx, true)

	assert.Equal(t, PhaseEnd, h.game.Snapshot().Phase)
	assert.Len(t, h.game.Progress().Towers, 1)
}

func TestEndGameCollapsedSavesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))

	h.game.EndGame(ctx, true)

	assert.Equal(t, PhaseEnd, h.game.Snapshot().Phase)
	assert.Empty(t, h.game.Progress().Towers)
	_, err := h.store.LoadProgress(ctx)
	require.NoError(t, err, "streak was still recorded")
}

func TestTowerHistoryKeepsFifty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range persistence.MaxSavedTowers + 1 {
		require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
		h.game.EndGame(ctx, false)
	}
	progress, err := h.store.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Len(t, progress.Towers, persistence.MaxSavedTowers)
}

func TestCollapseTriggersOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeFree))

	for i := range tower.CollapseThreshold {
		stackUntilNegative(t, h.game)
		require.Equal(t, Wrong, h.game.SwipeCard(Right))

		s := h.game.Snapshot()
		if i < tower.CollapseThreshold-1 {
			require.False(t, s.Stability.Collapsed)
			require.Zero(t, h.sched.pending())
		}
	}

	s := h.game.Snapshot()
	require.True(t, s.Stability.Collapsed)
	assert.Equal(t, 90.0, math.Abs(s.Stability.Sway))
	assert.Equal(t, 2, h.sched.pending(), "dust and end")

	// further unstable blocks do not re-trigger
	stackUntilNegative(t, h.game)
	h.game.SwipeCard(Right)
	assert.Equal(t, 4, h.game.Snapshot().Stability.UnstableCount)
	assert.Equal(t, 2, h.sched.pending())

	h.sched.Advance(DustDelay)
	s = h.game.Snapshot()
	assert.Len(t, s.Dust, tower.DustParticles)
	assert.Equal(t, PhaseCard, s.Phase)

	h.sched.Advance(CollapseDelay - DustDelay)
	assert.Equal(t, PhaseEnd, h.game.Snapshot().Phase)
	assert.Empty(t, h.game.Progress().Towers)
	assert.Equal(t, Wrong, h.game.SwipeCard(Right))
}

func TestStartGameCancelsPendingTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	playClean(t, h.game)
	require.Equal(t, 1, h.sched.pending())

	require.NoError(t, h.game.StartGame(ctx, cards.ModeFree))
	assert.Zero(t, h.sched.pending())

	h.sched.Advance(time.Minute)
	assert.Equal(t, PhaseCard, h.game.Snapshot().Phase)
	assert.Empty(t, h.game.Progress().Towers)
}

func TestStaleTimerIgnored(t *testing.T) {
	h := newHarness(t)
	h.sched.ignoreStop = true
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	playClean(t, h.game)

	h.game.ResetGame()
	h.sched.Advance(time.Minute)

	assert.Equal(t, PhaseLanding, h.game.Snapshot().Phase)
	assert.Empty(t, h.game.Progress().Towers)
}

func TestResetGame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	skipUntil(t, h.game, cards.TypeAffirmation)
	h.game.SwipeCard(Right)

	h.game.ResetGame()

	s := h.game.Snapshot()
	assert.Equal(t, PhaseLanding, s.Phase)
	assert.Empty(t, s.Deck)
	assert.Empty(t, s.Blocks)
	assert.Equal(t, Stats{TopAffirmations: []cards.Card{}}, s.Stats)
	assert.Zero(t, s.CurrentCardIndex)

	// nothing to persist once the session is gone
	h.game.EndGame(ctx, false)
	assert.Equal(t, PhaseEnd, h.game.Snapshot().Phase)
	assert.Empty(t, h.game.Progress().Towers)
}

func TestStreakAcrossDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	assert.Equal(t, 1, h.game.Snapshot().Streak)

	h.clock.t = h.clock.t.AddDate(0, 0, 1)
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	assert.Equal(t, 2, h.game.Snapshot().Streak)

	h.clock.t = h.clock.t.AddDate(0, 0, 2)
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	assert.Equal(t, 1, h.game.Snapshot().Streak)
}

func TestUpdatePrefs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	scale := 1.5
	prefs, err := h.game.UpdatePrefs(ctx, persistence.PrefsPatch{FontScale: &scale})
	require.NoError(t, err)
	assert.Equal(t, persistence.Prefs{Theme: persistence.ThemeDark, FontScale: 1.5}, prefs)
	assert.Equal(t, prefs, h.game.Prefs())

	stored, err := h.store.LoadPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, stored)

	bad := persistence.Theme("neon")
	_, err = h.game.UpdatePrefs(ctx, persistence.PrefsPatch{Theme: &bad})
	assert.Error(t, err)
	assert.Equal(t, prefs, h.game.Prefs())
}

func TestStorageWriteFailureKeepsMemoryState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Close())

	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	assert.Equal(t, 1, h.game.Snapshot().Streak)

	h.game.EndGame(ctx, false)
	progress := h.game.Progress()
	assert.Len(t, progress.Towers, 1)

	contrast := true
	prefs, err := h.game.UpdatePrefs(ctx, persistence.PrefsPatch{HighContrast: &contrast})
	require.NoError(t, err)
	assert.True(t, prefs.HighContrast)
}

func TestMemoryStateSurvivesRecoveredWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	h.game.EndGame(ctx, false)

	unblock := h.blockWrites(t)
	contrast := true
	_, err := h.game.UpdatePrefs(ctx, persistence.PrefsPatch{HighContrast: &contrast})
	require.NoError(t, err)
	require.NoError(t, h.game.StartGame(ctx, cards.ModeFree))
	h.game.EndGame(ctx, false)

	stored, err := h.store.LoadProgress(ctx)
	require.NoError(t, err)
	require.Len(t, stored.Towers, 1, "blocked write left the record alone")
	assert.Len(t, h.game.Progress().Towers, 2)

	unblock()
	reduced := true
	prefs, err := h.game.UpdatePrefs(ctx, persistence.PrefsPatch{ReducedMotion: &reduced})
	require.NoError(t, err)
	assert.True(t, prefs.HighContrast)
	assert.True(t, prefs.ReducedMotion)
	assert.Equal(t, prefs, h.game.Prefs())

	storedPrefs, err := h.store.LoadPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, storedPrefs)

	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	h.game.EndGame(ctx, false)
	progress := h.game.Progress()
	require.Len(t, progress.Towers, 3)
	assert.Equal(t, cards.ModeFree, progress.Towers[1].Mode)

	stored, err = h.store.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, progress, stored)
}

func TestResetProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.game.StartGame(ctx, cards.ModeDaily))
	h.game.EndGame(ctx, false)

	require.NoError(t, h.game.ResetProgress(ctx))
	assert.Equal(t, persistence.DefaultProgress(), h.game.Progress())
	_, err := h.store.LoadProgress(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
