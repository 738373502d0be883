// Package catalog owns the in-memory provider catalogue. Readers always get an
// immutable Snapshot; refreshes build a new one and swap it in atomically.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/logging"
)

var (
	// ErrUnavailable is returned when no snapshot can be produced.
	ErrUnavailable = errors.New("catalogue unavailable")
	// ErrDuplicateProvider rejects sources listing the same id twice.
	ErrDuplicateProvider = errors.New("duplicate provider id")
)

// defaultLoadTimeout bounds a shared refresh, which no longer follows any caller's deadline.
const defaultLoadTimeout = 30 * time.Second

// Snapshot is a read-only view of the catalogue. Callers must not mutate Providers.
type Snapshot struct {
	Providers []entity.Provider
	Version   string
	LoadedAt  time.Time
	Source    string
}

// Lookup returns the provider with the given id.
func (s *Snapshot) Lookup(id string) (entity.Provider, bool) {
	for i := range s.Providers {
		if s.Providers[i].ID == id {
			return s.Providers[i], true
		}
	}
	return entity.Provider{}, false
}

// Store caches the latest snapshot of a Source.
type Store struct {
	source          Source
	refreshInterval time.Duration
	loadTimeout     time.Duration
	now             func() time.Time

	current atomic.Pointer[Snapshot]
	refresh singleflight.Group
	// mu serialises swaps so Reload and a background refresh cannot interleave.
	mu sync.Mutex
}

// NewStore builds a store. A non-positive refresh interval means the first
// snapshot is kept until Reload is called.
func NewStore(source Source, refreshInterval time.Duration) *Store {
	return &Store{
		source:          source,
		refreshInterval: refreshInterval,
		loadTimeout:     defaultLoadTimeout,
		now:             time.Now,
	}
}

// Snapshot returns the current catalogue, loading or refreshing it when due.
// A failed refresh keeps serving the previous snapshot.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil && !s.expired(snap) {
		return snap, nil
	}

	v, err, _ := s.refresh.Do("snapshot", func() (any, error) {
		prev := s.current.Load()
		if prev != nil && !s.expired(prev) {
			return prev, nil
		}

		// Waiters share this load, so one caller going away must not cancel it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		next, err := s.load(loadCtx)
		if err != nil {
			if prev != nil {
				logging.FromContext(ctx).Warn().
					Err(err).
					Str("source", s.source.Name()).
					Str("catalog_version", prev.Version).
					Msg("catalog refresh failed, serving stale snapshot")
				return prev, nil
			}
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.swap(ctx, s.current.Load(), next)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Reload forces a refresh. On failure the previous snapshot stays in place and
// the error is returned.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	s.swap(ctx, s.current.Load(), next)
	return next, nil
}

// Current returns the loaded snapshot without triggering a refresh.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

func (s *Store) expired(snap *Snapshot) bool {
	if s.refreshInterval <= 0 {
		return false
	}
	return s.now().Sub(snap.LoadedAt) >= s.refreshInterval
}

func (s *Store) swap(ctx context.Context, prev, next *Snapshot) {
	s.current.Store(next)

	event := logging.FromContext(ctx).Info().
		Str("source", next.Source).
		Int("provider_count", len(next.Providers)).
		Str("catalog_version", next.Version)
	if prev != nil {
		event = event.Bool("changed", prev.Version != next.Version)
	}
	event.Msg("catalog snapshot loaded")
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	providers, err := s.source.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, fmt.Errorf("load catalog from %s: %w", s.source.Name(), err)
		}
		return nil, fmt.Errorf("load catalog from %s: %w: %w", s.source.Name(), ErrUnavailable, err)
	}
	snap, err := NewSnapshot(providers, s.source.Name(), s.now())
	if err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w: %w", s.source.Name(), ErrUnavailable, err)
	}
	return snap, nil
}

// NewSnapshot validates providers and freezes them into a snapshot. The
// version is a content hash, so reloading identical data keeps the version.
func NewSnapshot(providers []entity.Provider, source string, loadedAt time.Time) (*Snapshot, error) {
	if err := Validate(providers); err != nil {
		return nil, err
	}

	frozen := slices.Clone(providers)
	if frozen == nil {
		frozen = []entity.Provider{}
	}

	version, err := contentVersion(frozen)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Providers: frozen,
		Version:   version,
		LoadedAt:  loadedAt,
		Source:    source,
	}, nil
}

// Validate checks every record and rejects duplicate ids.
func Validate(providers []entity.Provider) error {
	seen := make(map[string]struct{}, len(providers))
	for i := range providers {
		if err := providers[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
		if _, dup := seen[providers[i].ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProvider, providers[i].ID)
		}
		seen[providers[i].ID] = struct{}{}
	}
	return nil
}

func contentVersion(providers []entity.Provider) (string, error) {
	raw, err := json.Marshal(providers)
	if err != nil {
		return "", fmt.Errorf("hash catalog: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]), nil
}
