package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"

	"github.com/google/uuid"
)

// ResponseKeyPrefix prefixes the response list of each form
const ResponseKeyPrefix = "dl-resp-"

// ResponseStore keeps the responses collected for each form as one JSON
// array per form.
type ResponseStore struct {
	store repositories.KeyValueStore
	now   func() time.Time
	mu    sync.Mutex
}

var _ formsRepo.ResponseRepository = (*ResponseStore)(nil)

func NewResponseStore(store repositories.KeyValueStore) *ResponseStore {
	return &ResponseStore{store: store, now: time.Now}
}

// ResponseKey returns the storage key for a form's responses
func ResponseKey(formName string) string {
	return ResponseKeyPrefix + formName
}

// Add appends rec. Missing ID and SubmittedAt are filled in.
func (s *ResponseStore) Add(ctx context.Context, formName string, rec models.ResponseRecord) error {
	if formName == "" {
		return domain.NewRepositoryError(Backend, "add response", formName,
			fmt.Errorf("%w: missing form name", domain.ErrValidation))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SubmittedAt == 0 {
		rec.SubmittedAt = s.now().UnixMilli()
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx, formName)
	if err != nil {
		return domain.NewRepositoryError(Backend, "add response", formName, err)
	}
	records = append(records, rec)

	blob, err := json.Marshal(records)
	if err != nil {
		return domain.NewRepositoryError(Backend, "add response", formName, err)
	}
	if err := s.store.Set(ctx, ResponseKey(formName), string(blob)); err != nil {
		return domain.NewRepositoryError(Backend, "add response", formName, err)
	}
	return nil
}

// List returns the responses newest first. A form without responses yields
// an empty slice.
func (s *ResponseStore) List(ctx context.Context, formName string) ([]models.ResponseRecord, error) {
	records, err := s.load(ctx, formName)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "list responses", formName, err)
	}
	// records are stored oldest first; reversing keeps later adds ahead on ties
	slices.Reverse(records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SubmittedAt > records[j].SubmittedAt
	})
	return records, nil
}

func (s *ResponseStore) Clear(ctx context.Context, formName string) error {
	if err := s.store.Remove(ctx, ResponseKey(formName)); err != nil {
		return domain.NewRepositoryError(Backend, "clear responses", formName, err)
	}
	return nil
}

func (s *ResponseStore) load(ctx context.Context, formName string) ([]models.ResponseRecord, error) {
	raw, err := s.store.Get(ctx, ResponseKey(formName))
	if errors.Is(err, domain.ErrNotFound) {
		return []models.ResponseRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	var records []models.ResponseRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		// corrupt list reads as empty, same as a missing one
		return []models.ResponseRecord{}, nil
	}
	return records, nil
}

// Page returns the 1-based page of records and the total page count
func Page(records []models.ResponseRecord, page, size int) ([]models.ResponseRecord, int) {
	if size <= 0 {
		size = 10
	}
	total := (len(records) + size - 1) / size
	if total == 0 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * size
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	if start > end {
		start = end
	}
	return records[start:end], total
}
