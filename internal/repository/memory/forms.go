// Package memory holds an in-process form store for running the document
// store server without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"

	"github.com/google/uuid"
)

// FormStore keeps forms in a map. Returned values are copies.
type FormStore struct {
	mu    sync.RWMutex
	forms map[string]*models.Form
}

// NewFormStore creates an empty store
func NewFormStore() *FormStore {
	return &FormStore{forms: make(map[string]*models.Form)}
}

var _ formsRepo.FormStore = (*FormStore)(nil)

func copyForm(f *models.Form) *models.Form {
	c := *f
	c.Versions = append([]models.FormVersion(nil), f.Versions...)
	return &c
}

func (s *FormStore) Create(ctx context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forms[form.Name]; ok {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("form '%s' already exists", form.Name),
			ResourceType: "form",
			ResourceID:   form.Name,
		}
	}
	for i := range form.Versions {
		form.Versions[i].ID = uuid.NewString()
		form.Versions[i].FormName = form.Name
	}
	s.forms[form.Name] = copyForm(form)
	return nil
}

func (s *FormStore) GetByName(ctx context.Context, name string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forms[name]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
	}
	return copyForm(f), nil
}

func (s *FormStore) List(ctx context.Context, opts formsRepo.ListOptions) ([]models.Form, error) {
	s.mu.RLock()
	out := make([]models.Form, 0, len(s.forms))
	for _, f := range s.forms {
		row := *f
		row.Versions = nil
		out = append(out, row)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if opts.Ascending {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if opts.Ascending {
			return a.Name < b.Name
		}
		return a.Name > b.Name
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *FormStore) Update(ctx context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.forms[form.Name]
	if !ok {
		return fmt.Errorf("form %s: %w", form.Name, domain.ErrNotFound)
	}
	versions := stored.Versions
	*stored = *form
	stored.Versions = versions
	return nil
}

func (s *FormStore) AppendVersions(ctx context.Context, name string, versions []models.FormVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.forms[name]
	if !ok {
		return fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
	}
	for i := range versions {
		for _, existing := range stored.Versions {
			if existing.Version == versions[i].Version {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("version %d of '%s' already exists", versions[i].Version, name),
					ResourceType: "version",
					ResourceID:   name,
				}
			}
		}
		versions[i].ID = uuid.NewString()
		versions[i].FormName = name
	}
	stored.Versions = append(stored.Versions, versions...)
	return nil
}

func (s *FormStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forms[name]; !ok {
		return fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
	}
	delete(s.forms, name)
	return nil
}

func (s *FormStore) Ping(ctx context.Context) error {
	return nil
}

// TransactionManager serializes units of work. Writes made before a
// failure are not rolled back.
type TransactionManager struct {
	mu sync.Mutex
}

// NewTransactionManager creates a transaction manager for the memory store
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

var _ repositories.TransactionManager = (*TransactionManager)(nil)

func (m *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}
