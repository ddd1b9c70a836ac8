package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cellcare/cellcare_backend/internal/repo"
)

// Repointer moves every dependent reference from one assessment to another.
// It must be safe to run more than once for the same pair.
type Repointer interface {
	Repoint(ctx context.Context, from, to uuid.UUID) error
}

// RepointerFunc adapts a function to Repointer.
type RepointerFunc func(ctx context.Context, from, to uuid.UUID) error

func (f RepointerFunc) Repoint(ctx context.Context, from, to uuid.UUID) error {
	return f(ctx, from, to)
}

// TableExecutor rewrites one foreign-key column.
type TableExecutor interface {
	Repoint(ctx context.Context, table, column string, from, to uuid.UUID) (int64, error)
}

// TableRepointer re-points a single table.column holding assessment ids.
type TableRepointer struct {
	Table  string
	Column string
	exec   TableExecutor
}

func NewTableRepointer(exec TableExecutor, table, column string) (*TableRepointer, error) {
	if !repo.ValidIdentifier(table) || !repo.ValidIdentifier(column) {
		return nil, fmt.Errorf("%w: %q.%q", ErrInvalidDependentRef, table, column)
	}
	return &TableRepointer{Table: table, Column: column, exec: exec}, nil
}

func (t *TableRepointer) Repoint(ctx context.Context, from, to uuid.UUID) error {
	n, err := t.exec.Repoint(ctx, t.Table, t.Column, from, to)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("dependents re-pointed", "table", t.Table, "column", t.Column, "rows", n, "from", from, "to", to)
	}
	return nil
}

// Registry holds the deployment's re-pointers in registration order.
type Registry struct {
	mu    sync.RWMutex
	names []string
	items map[string]Repointer
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Repointer)}
}

func (r *Registry) Register(name string, rp Repointer) error {
	if name == "" {
		return ErrRepointerName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRepointer, name)
	}
	r.names = append(r.names, name)
	r.items[name] = rp
	return nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// RepointAll runs every re-pointer for one loser and stops at the first failure.
func (r *Registry) RepointAll(ctx context.Context, from, to uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.names {
		if err := r.items[name].Repoint(ctx, from, to); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRepointFailed, name, err)
		}
	}
	return nil
}
