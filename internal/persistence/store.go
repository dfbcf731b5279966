package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store reads and writes the prefs and progress records.
//
// Load* methods report failures to the caller, which decides whether to fall
// back to defaults. Mutating methods merge in memory and overwrite the whole
// record; when the stored record cannot be read they merge over the defaults.
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a store over db. now defaults to time.Now.
func NewStore(db *DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// LoadPrefs reads stored prefs merged over DefaultPrefs.
// It returns ErrNotFound or a wrapped ErrCorrupt when there is nothing usable.
func (s *Store) LoadPrefs(ctx context.Context) (Prefs, error) {
	prefs := DefaultPrefs()
	if err := s.load(ctx, KeyPrefs, &prefs); err != nil {
		return DefaultPrefs(), err
	}
	return prefs, nil
}

// LoadProgress reads stored progress merged over DefaultProgress.
func (s *Store) LoadProgress(ctx context.Context) (Progress, error) {
	progress := DefaultProgress()
	if err := s.load(ctx, KeyProgress, &progress); err != nil {
		return DefaultProgress(), err
	}
	if progress.Towers == nil {
		progress.Towers = []SavedTower{}
	}
	return progress, nil
}

// PrefsOrDefault is LoadPrefs with the default-substitution policy applied.
func (s *Store) PrefsOrDefault(ctx context.Context) Prefs {
	prefs, err := s.LoadPrefs(ctx)
	logFallback(KeyPrefs, err)
	return prefs
}

// ProgressOrDefault is LoadProgress with the default-substitution policy applied.
func (s *Store) ProgressOrDefault(ctx context.Context) Progress {
	progress, err := s.LoadProgress(ctx)
	logFallback(KeyProgress, err)
	return progress
}

// SavePrefs merges patch into the stored prefs and writes the result.
func (s *Store) SavePrefs(ctx context.Context, patch PrefsPatch) (Prefs, error) {
	prefs := patch.Apply(s.PrefsOrDefault(ctx))
	if err := s.save(ctx, KeyPrefs, prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// PutPrefs overwrites the prefs record with prefs.
func (s *Store) PutPrefs(ctx context.Context, prefs Prefs) error {
	return s.save(ctx, KeyPrefs, prefs)
}

// SaveProgress overwrites the progress record.
func (s *Store) SaveProgress(ctx context.Context, progress Progress) error {
	return s.save(ctx, KeyProgress, progress)
}

// AddTower records t in the stored progress. See Progress.WithTower.
func (s *Store) AddTower(ctx context.Context, t SavedTower) (Progress, error) {
	progress := s.ProgressOrDefault(ctx).WithTower(t)
	return progress, s.SaveProgress(ctx, progress)
}

// UpdateStreak records a play at the store's current time.
// See Progress.WithPlay; a replay on the same UTC date writes nothing.
func (s *Store) UpdateStreak(ctx context.Context) (Progress, error) {
	progress, changed := s.ProgressOrDefault(ctx).WithPlay(s.now())
	if !changed {
		return progress, nil
	}
	return progress, s.SaveProgress(ctx, progress)
}

// Reset deletes both records; later loads report ErrNotFound.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.DeleteRecord(ctx, KeyPrefs); err != nil {
		return err
	}
	return s.db.DeleteRecord(ctx, KeyProgress)
}

func (s *Store) load(ctx context.Context, key string, into any) error {
	raw, err := s.db.GetRecord(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.PutRecord(ctx, key, string(raw))
}

func logFallback(key string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		slog.Debug("record missing, using defaults", "key", key)
	default:
		slog.Warn("record unreadable, using defaults", "key", key, "error", err)
	}
}
