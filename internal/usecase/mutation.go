package usecase

import (
	"context"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// OptimisticUpdate describes a local change applied before the server
// confirms a mutation. Update receives the cached value (ok is false when
// there is none) and returns the value to show meanwhile. Returning nil
// leaves the entry untouched.
type OptimisticUpdate struct {
	Key    cache.QueryKey
	Update func(prev any, ok bool) any
}

// OptimisticPatch records one applied optimistic update
type OptimisticPatch struct {
	QueryKey      cache.QueryKey
	PreviousValue any
	AppliedValue  any
	Committed     bool

	previous cache.State
	existed  bool
}

// MutateOptions configures one mutation
type MutateOptions[T any] struct {
	Optimistic []OptimisticUpdate
	// Invalidates lists key prefixes marked stale once the mutation succeeds
	Invalidates []cache.QueryKey
	// OnSuccess runs after the server confirmed, before invalidation
	OnSuccess func(c *cache.QueryCache, result T)
}

// MutationExecutor runs state-changing calls against the query cache
type MutationExecutor struct {
	cache  *cache.QueryCache
	logger *zap.Logger
}

// NewMutationExecutor creates an executor bound to c
func NewMutationExecutor(c *cache.QueryCache, logger *zap.Logger) *MutationExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationExecutor{cache: c, logger: logger.Named("mutation")}
}

// Apply snapshots and applies updates in order. Fetches in flight for the
// touched keys are detached so they cannot overwrite the optimistic value.
func (m *MutationExecutor) Apply(updates []OptimisticUpdate) []*OptimisticPatch {
	patches := make([]*OptimisticPatch, 0, len(updates))
	for _, u := range updates {
		m.cache.Cancel(u.Key)
		st, existed := m.cache.GetState(u.Key)
		applied := u.Update(st.Data, existed && st.HasData)
		if applied == nil {
			continue
		}
		m.cache.SetData(u.Key, applied)

		patches = append(patches, &OptimisticPatch{
			QueryKey:      u.Key,
			PreviousValue: st.Data,
			AppliedValue:  applied,
			previous:      st,
			existed:       existed,
		})
	}
	return patches
}

// Commit marks patches as confirmed by the server
func (m *MutationExecutor) Commit(patches []*OptimisticPatch) {
	for _, p := range patches {
		p.Committed = true
	}
}

// Rollback restores every uncommitted patch to its snapshot, newest first
func (m *MutationExecutor) Rollback(patches []*OptimisticPatch) {
	for i := len(patches) - 1; i >= 0; i-- {
		p := patches[i]
		if p.Committed {
			continue
		}
		m.cache.Restore(p.QueryKey, p.previous, p.existed)
	}
}

// Invalidate marks every prefix stale
func (m *MutationExecutor) Invalidate(prefixes []cache.QueryKey) {
	for _, prefix := range prefixes {
		m.cache.Invalidate(prefix)
	}
}

// Mutate applies the optimistic updates, calls fn and then either commits
// and invalidates (success) or rolls back (failure). Invalidation is done
// before Mutate returns. Mutations are never retried.
func Mutate[T any](ctx context.Context, m *MutationExecutor, fn func(ctx context.Context) (T, error), opts MutateOptions[T]) (T, error) {
	patches := m.Apply(opts.Optimistic)

	result, err := fn(ctx)
	if err != nil {
		m.Rollback(patches)
		m.logger.Debug("mutation failed, rolled back",
			zap.Int("patches", len(patches)),
			zap.Error(err),
		)
		var zero T
		return zero, domain.AsError(err)
	}

	m.Commit(patches)
	if opts.OnSuccess != nil {
		opts.OnSuccess(m.cache, result)
	}
	m.Invalidate(opts.Invalidates)
	return result, nil
}
