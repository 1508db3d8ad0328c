// Package executor maps job types to the strategies that run them.
//
// The registry is an explicit object built at process start and handed to the
// scheduler service; adding a job kind means implementing Executor and
// registering it, with no scheduler or runner changes. A type with no
// registered executor is a deployment bug that surfaces through the normal
// job failure path, never a crash.
package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// Executor runs one job attempt. An attempt is binary: a nil return means
// the job fully succeeded, any error means the whole attempt failed.
type Executor interface {
	Execute(ctx context.Context, entityID string) error
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, entityID string) error

func (f Func) Execute(ctx context.Context, entityID string) error {
	return f(ctx, entityID)
}

// Registry associates each job type with a single executor instance.
// Registration happens once at startup; lookup is read-mostly afterwards.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.JobType]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.JobType]Executor)}
}

// Register binds typ to ex, replacing any previous binding.
func (r *Registry) Register(typ domain.JobType, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[typ] = ex
}

// Lookup returns the executor for typ, or false if none is registered.
func (r *Registry) Lookup(typ domain.JobType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[typ]
	return ex, ok
}

// Types returns the registered job types in stable order.
func (r *Registry) Types() []domain.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.JobType, 0, len(r.executors))
	for typ := range r.executors {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
