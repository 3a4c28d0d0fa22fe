// Package service provides the business logic of the sync server: the sync
// reconciliation engine, the initial upload, user salt bookkeeping and the
// administrative reset. Persistence is delegated to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/metrics"
	"github.com/atinyakov/vultsync/internal/models"
)

// CredentialStore is the per-user durable credential table.
type CredentialStore interface {
	// Apply applies m and returns the id an Add was stored under when the
	// requested one was taken, or "" otherwise. Modify and Delete of an absent
	// id fail with models.ErrMissingItem.
	Apply(ctx context.Context, alias string, m models.Mutation) (string, error)
	// ExportAll returns every credential of alias.
	ExportAll(ctx context.Context, alias string) ([]models.Credential, error)
	// ImportAll fills an empty store; a non-empty one fails with models.ErrExistingUser.
	ImportAll(ctx context.Context, alias string, credentials []models.Credential) error
	IsEmpty(ctx context.Context, alias string) (bool, error)
	Reset(ctx context.Context, alias string) error
}

// MutationCache is the per-user append-only log of mutation batches.
type MutationCache interface {
	// AddMutations appends a batch, which may be empty, and returns its state id.
	AddMutations(ctx context.Context, alias string, mutations []models.Mutation) (string, error)
	HasState(ctx context.Context, alias, id string) (bool, error)
	// GetNextMutations returns the mutations of every batch appended after id,
	// oldest first.
	GetNextMutations(ctx context.Context, alias, id string) ([]models.Mutation, error)
	// GetMutationsBetween returns the mutations of every batch appended after
	// from and before to, oldest first.
	GetMutationsBetween(ctx context.Context, alias, from, to string) ([]models.Mutation, error)
	IsEmpty(ctx context.Context, alias string) (bool, error)
	Reset(ctx context.Context, alias string) error
}

// SyncService runs sync rounds and the initial upload against a store and a cache.
type SyncService struct {
	store CredentialStore
	cache MutationCache
	log   *zap.Logger
}

// NewSyncService constructs a SyncService.
func NewSyncService(store CredentialStore, cache MutationCache, log *zap.Logger) *SyncService {
	return &SyncService{store: store, cache: cache, log: log}
}

// Sync runs one sync round for alias.
//
// The client's mutations are applied to the store left to right. Adds that
// collided are logged under their new id and reported in IDChanges; mutations
// that fail are left out of the logged batch. The surviving batch is appended
// to the cache first. A client presenting an unknown state id then receives
// the full store, otherwise every mutation logged between its state and the
// new batch, minus those for ids the client has just touched.
//
// A round without mutations whose state is current returns that state
// unchanged and writes nothing.
func (s *SyncService) Sync(ctx context.Context, alias string, req models.SyncRequest) (*models.SyncResponse, error) {
	resp, err := s.sync(ctx, alias, req)
	if err != nil {
		metrics.SyncRoundsTotal.WithLabelValues(metrics.Fail).Inc()
		return nil, err
	}
	return resp, nil
}

func (s *SyncService) sync(ctx context.Context, alias string, req models.SyncRequest) (*models.SyncResponse, error) {
	if len(req.Mutations) == 0 {
		current, err := s.isCurrent(ctx, alias, req.StateID)
		if err != nil {
			return nil, err
		}
		if current {
			metrics.SyncRoundsTotal.WithLabelValues(metrics.Noop).Inc()
			return &models.SyncResponse{Status: models.StatusSuccess, StateID: req.StateID}, nil
		}
	}

	batch, changes, touched := s.applyAll(ctx, alias, req.Mutations)

	stateID, err := s.cache.AddMutations(ctx, alias, batch)
	if err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	resp := &models.SyncResponse{Status: models.StatusSuccess, StateID: stateID, IDChanges: changes}

	// Batches appended by concurrent rounds sit strictly between the client's
	// state and stateID, so they are part of the delta.
	known, err := s.cache.HasState(ctx, alias, req.StateID)
	if err != nil {
		return nil, fmt.Errorf("check state: %w", err)
	}
	if known {
		remote, err := s.cache.GetMutationsBetween(ctx, alias, req.StateID, stateID)
		if err != nil {
			return nil, fmt.Errorf("read remote mutations: %w", err)
		}
		resp.Mutations = s.filterRemote(alias, remote, touched)
	} else {
		snapshot, err := s.store.ExportAll(ctx, alias)
		if err != nil {
			return nil, fmt.Errorf("export store: %w", err)
		}
		metrics.SyncSnapshotsTotal.Inc()
		resp.Store = snapshot
	}

	metrics.SyncRoundsTotal.WithLabelValues(metrics.Ok).Inc()
	s.log.Debug("sync round committed",
		zap.String("alias", alias),
		zap.String("state_id", resp.StateID),
		zap.Int("logged", len(batch)),
		zap.Int("remote", len(resp.Mutations)),
		zap.Bool("snapshot", !known),
	)
	return resp, nil
}

// isCurrent reports whether stateID is known and nothing was logged after it.
func (s *SyncService) isCurrent(ctx context.Context, alias, stateID string) (bool, error) {
	known, err := s.cache.HasState(ctx, alias, stateID)
	if err != nil {
		return false, fmt.Errorf("check state: %w", err)
	}
	if !known {
		return false, nil
	}
	remote, err := s.cache.GetNextMutations(ctx, alias, stateID)
	if err != nil {
		return false, fmt.Errorf("read remote mutations: %w", err)
	}
	return len(remote) == 0, nil
}

// applyAll applies mutations in order and returns the batch to log, the id
// changes of collided Adds and the set of ids the client touched.
func (s *SyncService) applyAll(ctx context.Context, alias string, mutations []models.Mutation) ([]models.Mutation, []models.IDChange, map[string]struct{}) {
	batch := make([]models.Mutation, 0, len(mutations))
	touched := make(map[string]struct{}, len(mutations))
	var changes []models.IDChange

	for _, m := range mutations {
		newID, err := s.store.Apply(ctx, alias, m)
		switch {
		case err == nil:
			if newID != "" {
				changes = append(changes, models.IDChange{Old: m.ID(), New: newID})
				metrics.IDCollisionsTotal.Inc()
				m = m.WithID(newID)
			}
			batch = append(batch, m)
			metrics.MutationsAppliedTotal.WithLabelValues(string(m.Op())).Inc()
		case errors.Is(err, models.ErrMissingItem):
			s.log.Info("dropping mutation for missing credential",
				zap.String("alias", alias), zap.Stringer("mutation", m))
			metrics.MutationsDroppedTotal.WithLabelValues(metrics.ReasonMissing).Inc()
		default:
			s.log.Warn("dropping mutation that failed to apply",
				zap.String("alias", alias), zap.Stringer("mutation", m), zap.Error(err))
			metrics.MutationsDroppedTotal.WithLabelValues(metrics.ReasonError).Inc()
		}
		touched[m.ID()] = struct{}{}
	}
	return batch, changes, touched
}

// filterRemote drops remote mutations for ids in touched. It returns nil when
// nothing survives.
//
// Ids of remote mutations are not added to touched: a remote Add followed by
// a remote Modify of the same credential must both reach the client, or it
// keeps the value of the Add.
func (s *SyncService) filterRemote(alias string, remote []models.Mutation, touched map[string]struct{}) []models.Mutation {
	var out []models.Mutation
	for _, m := range remote {
		if _, ok := touched[m.ID()]; !ok {
			out = append(out, m)
			continue
		}
		metrics.RemoteSuppressedTotal.Inc()
		if m.Op() == models.OpAdd {
			metrics.RemoteAddAnomaliesTotal.Inc()
			s.log.Warn("remote add for an id the client touched",
				zap.String("alias", alias), zap.String("id", m.ID()))
		}
	}
	return out
}

// InitUpload imports credentials into the empty store of alias and appends an
// empty checkpoint batch, whose state id is returned. It fails with
// models.ErrExistingUser when the store or the cache already holds data.
func (s *SyncService) InitUpload(ctx context.Context, alias string, credentials []models.Credential) (string, error) {
	storeEmpty, err := s.store.IsEmpty(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("check store: %w", err)
	}
	cacheEmpty, err := s.cache.IsEmpty(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("check cache: %w", err)
	}
	if !storeEmpty || !cacheEmpty {
		return "", fmt.Errorf("init upload for %q: %w", alias, models.ErrExistingUser)
	}

	if err := s.store.ImportAll(ctx, alias, credentials); err != nil {
		return "", err
	}
	stateID, err := s.cache.AddMutations(ctx, alias, nil)
	if err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}
	s.log.Info("store initialised",
		zap.String("alias", alias), zap.Int("credentials", len(credentials)), zap.String("state_id", stateID))
	return stateID, nil
}
