// Package memory keeps imports in process memory. It is the default store;
// imports are lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

type importRepositoryImpl struct {
	mu      sync.RWMutex
	imports map[string]absence.Import
}

func NewImportRepository() absence.ImportRepository {
	return &importRepositoryImpl{imports: make(map[string]absence.Import)}
}

// Create implements absence.ImportRepository.
func (r *importRepositoryImpl) Create(ctx context.Context, imp absence.Import) error {
	imp.Records = slices.Clone(imp.Records)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports[imp.ID] = imp
	return nil
}

// GetByID implements absence.ImportRepository. The returned records are a
// copy; callers may not mutate the stored import.
func (r *importRepositoryImpl) GetByID(ctx context.Context, id string) (absence.Import, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	imp, ok := r.imports[id]
	if !ok {
		return absence.Import{}, absence.ErrImportNotFound
	}
	imp.Records = slices.Clone(imp.Records)
	return imp, nil
}

// Delete implements absence.ImportRepository.
func (r *importRepositoryImpl) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.imports[id]; !ok {
		return absence.ErrImportNotFound
	}
	delete(r.imports, id)
	return nil
}

// DeleteCreatedBefore implements absence.ImportRepository.
func (r *importRepositoryImpl) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]absence.Import, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []absence.Import
	for id, imp := range r.imports {
		if !imp.CreatedAt.Before(cutoff) {
			continue
		}
		imp.Records = nil
		deleted = append(deleted, imp)
		delete(r.imports, id)
	}
	return deleted, nil
}
