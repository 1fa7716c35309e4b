package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	formsSvc "formbuilder/internal/service/forms"
)

const (
	// Backend is the name reported in repository errors
	Backend = "local"

	// FormKeyPrefix prefixes every stored form key
	FormKeyPrefix = "dl-form-"
)

// LocalRecord is the blob stored under each form key
type LocalRecord struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Status     *string `json:"status"`
	SchemaJSON string  `json:"schema_json"`
	Creation   int64   `json:"creation"`
	Modified   int64   `json:"modified"`
}

// FormRepository keeps one blob per form in a key/value store. There is no
// version history and status is always null.
type FormRepository struct {
	store  repositories.KeyValueStore
	now    func() time.Time
	logger *slog.Logger

	// serializes name assignment so two creates in the same millisecond differ
	mu sync.Mutex
}

var _ formsRepo.FormRepository = (*FormRepository)(nil)

// NewFormRepository creates a local form repository over store
func NewFormRepository(store repositories.KeyValueStore, logger *slog.Logger) *FormRepository {
	return &FormRepository{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// FormKey returns the storage key for a form name
func FormKey(name string) string {
	return FormKeyPrefix + name
}

func (r *FormRepository) List(ctx context.Context) ([]models.FormSummary, error) {
	keys, err := r.store.ListKeys(ctx, FormKeyPrefix)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "list", "", err)
	}

	rows := make([]models.FormSummary, 0, len(keys))
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// removed between ListKeys and Get
				continue
			}
			return nil, domain.NewRepositoryError(Backend, "list", "", err)
		}
		rec := r.decode(strings.TrimPrefix(key, FormKeyPrefix), raw)
		rows = append(rows, rec.summary())
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Modified != rows[j].Modified {
			return rows[i].Modified > rows[j].Modified
		}
		return rows[i].Name > rows[j].Name
	})
	return rows, nil
}

func (r *FormRepository) Get(ctx context.Context, name string) (*models.FormDetail, error) {
	if name == "" {
		return nil, domain.NewRepositoryError(Backend, "get", name,
			fmt.Errorf("%w: missing form name", domain.ErrValidation))
	}
	raw, err := r.store.Get(ctx, FormKey(name))
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "get", name, err)
	}
	rec := r.decode(name, raw)
	return &models.FormDetail{FormSummary: rec.summary(), SchemaJSON: rec.SchemaJSON}, nil
}

func (r *FormRepository) Upsert(ctx context.Context, input models.UpsertInput) (*models.UpsertResult, error) {
	if err := formsSvc.ValidateUpsert(&input); err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", input.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	name := input.Name
	creation := now

	if name == "" {
		assigned, err := r.assignName(ctx, now)
		if err != nil {
			return nil, domain.NewRepositoryError(Backend, "upsert", "", err)
		}
		name = assigned
	} else if raw, err := r.store.Get(ctx, FormKey(name)); err == nil {
		creation = r.decode(name, raw).Creation
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewRepositoryError(Backend, "upsert", name, err)
	}

	rec := LocalRecord{
		Name:       name,
		Title:      formsSvc.DefaultTitle(input.Title),
		SchemaJSON: input.SchemaJSON,
		Creation:   creation,
		Modified:   now,
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", name, fmt.Errorf("encode record: %w", err))
	}
	if err := r.store.Set(ctx, FormKey(name), string(blob)); err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", name, err)
	}

	r.logger.Debug("local form saved", "name", name, "created", input.Name == "")
	return &models.UpsertResult{Name: name}, nil
}

func (r *FormRepository) Remove(ctx context.Context, name string) error {
	if err := r.store.Remove(ctx, FormKey(name)); err != nil {
		return domain.NewRepositoryError(Backend, "remove", name, err)
	}
	r.logger.Debug("local form removed", "name", name)
	return nil
}

// Ping verifies the store answers a key listing
func (r *FormRepository) Ping(ctx context.Context) error {
	if _, err := r.store.ListKeys(ctx, FormKeyPrefix); err != nil {
		return domain.NewRepositoryError(Backend, "ping", "", fmt.Errorf("%w: %v", domain.ErrUnavailable, err))
	}
	return nil
}

// assignName returns a millisecond timestamp name, bumped until unused
func (r *FormRepository) assignName(ctx context.Context, now int64) (string, error) {
	for candidate := now; ; candidate++ {
		name := strconv.FormatInt(candidate, 10)
		_, err := r.store.Get(ctx, FormKey(name))
		if errors.Is(err, domain.ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// decode reads a stored blob. Blobs that are a bare schema (draft fallback
// copies, older data) are accepted: the title comes from the schema and the
// timestamp from a numeric name.
func (r *FormRepository) decode(name, raw string) LocalRecord {
	var rec LocalRecord
	if err := json.Unmarshal([]byte(raw), &rec); err == nil && rec.SchemaJSON != "" {
		rec.Name = name
		rec.Status = nil
		if rec.Title == "" {
			rec.Title = formsSvc.TitleOf(rec.SchemaJSON)
		}
		return rec
	}

	ts := timestampFromName(name)
	if ts == 0 {
		ts = r.now().UnixMilli()
	}
	return LocalRecord{
		Name:       name,
		Title:      formsSvc.TitleOf(raw),
		SchemaJSON: raw,
		Creation:   ts,
		Modified:   ts,
	}
}

// timestampFromName parses names such as "1718000000000" or "draft-1718000000000"
func timestampFromName(name string) int64 {
	parts := strings.Split(name, "-")
	for i := len(parts) - 1; i >= 0; i-- {
		if ts, err := strconv.ParseInt(parts[i], 10, 64); err == nil && ts > 0 {
			return ts
		}
	}
	return 0
}

func (rec LocalRecord) summary() models.FormSummary {
	return models.FormSummary{
		Name:     rec.Name,
		Title:    rec.Title,
		Status:   nil,
		Creation: rec.Creation,
		Modified: rec.Modified,
	}
}
