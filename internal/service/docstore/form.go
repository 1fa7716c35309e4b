package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	docstoreSvc "formbuilder/internal/domain/services/docstore"

	"github.com/google/uuid"
)

// formService implements the FormService interface
type formService struct {
	store     formsRepo.FormStore
	txManager repositories.TransactionManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewFormService creates a new form service
func NewFormService(
	store formsRepo.FormStore,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) docstoreSvc.FormService {
	return &formService{
		store:     store,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateForm creates a form with its initial version history
func (s *formService) CreateForm(ctx context.Context, req *docstoreSvc.CreateFormRequest) (*models.Form, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = uuid.NewString()
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = config.DefaultFormTitle
	}
	status := req.Status
	if status == "" {
		status = models.StatusDraft
	}
	schema := "{}"
	if req.SchemaJSON != nil {
		schema = *req.SchemaJSON
	}

	versions := sortedVersions(req.Versions)
	if len(versions) == 0 {
		first := 1
		if req.CurrentVersion != nil {
			first = *req.CurrentVersion
		}
		initial := "Initial"
		versions = []docstoreSvc.VersionInput{{Version: first, SchemaJSON: schema, Changelog: &initial}}
	}
	latest := versions[len(versions)-1].Version
	if req.CurrentVersion != nil && *req.CurrentVersion != latest {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("current_version %d does not match latest version %d", *req.CurrentVersion, latest),
		}
	}

	form := &models.Form{
		Name:           name,
		Title:          title,
		Slug:           req.Slug,
		Status:         status,
		SchemaJSON:     schema,
		CurrentVersion: latest,
		PublishedOn:    req.PublishedOn,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Owner != "" {
		owner := req.Owner
		form.Owner = &owner
	}
	form.Versions = toVersions(versions, 0, now)

	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, form)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("form created",
		"name", form.Name,
		"title", form.Title,
		"version", form.CurrentVersion,
	)
	return form, nil
}

// GetForm retrieves a form with its history
func (s *formService) GetForm(ctx context.Context, name string) (*models.Form, error) {
	return s.store.GetByName(ctx, name)
}

// ListForms retrieves form metadata
func (s *formService) ListForms(ctx context.Context, opts formsRepo.ListOptions) ([]models.Form, error) {
	return s.store.List(ctx, opts)
}

// UpdateForm applies a partial update inside one transaction. The stored row
// is locked while versions are compared and appended.
func (s *formService) UpdateForm(ctx context.Context, name string, req *docstoreSvc.UpdateFormRequest) (*models.Form, error) {
	if err := validateUpdateRequest(req); err != nil {
		return nil, err
	}

	var updated *models.Form
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		form, err := s.store.GetByName(ctx, name)
		if err != nil {
			return err
		}

		if req.Title != nil {
			form.Title = strings.TrimSpace(*req.Title)
			if form.Title == "" {
				form.Title = config.DefaultFormTitle
			}
		}
		if req.Slug.Present {
			form.Slug = req.Slug.Value
		}
		if req.Status != nil {
			form.Status = *req.Status
		}
		if req.SchemaJSON != nil {
			form.SchemaJSON = *req.SchemaJSON
		}
		if req.PublishedOn.Present {
			form.PublishedOn = req.PublishedOn.Value
		}

		// history is append-only: anything at or below the stored max is
		// an echo of existing entries
		storedMax := form.MaxVersion()
		var fresh []docstoreSvc.VersionInput
		for _, v := range sortedVersions(req.Versions) {
			if v.Version > storedMax {
				fresh = append(fresh, v)
			}
		}

		latest := storedMax
		if len(fresh) > 0 {
			latest = fresh[len(fresh)-1].Version
		}
		if req.CurrentVersion != nil && *req.CurrentVersion != latest {
			return &domain.ValidationError{
				Message: fmt.Sprintf("current_version %d does not match latest version %d", *req.CurrentVersion, latest),
			}
		}
		form.CurrentVersion = latest
		form.UpdatedAt = s.now()

		if err := s.store.Update(ctx, form); err != nil {
			return err
		}
		appended := toVersions(fresh, len(form.Versions), form.UpdatedAt)
		if err := s.store.AppendVersions(ctx, name, appended); err != nil {
			return err
		}
		form.Versions = append(form.Versions, appended...)
		updated = form

		s.logger.Info("form updated",
			"name", name,
			"version", form.CurrentVersion,
			"appended", len(appended),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteForm removes a form and its versions
func (s *formService) DeleteForm(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("form deleted", "name", name)
	return nil
}

func (s *formService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// sortedVersions returns a copy ordered by version number
func sortedVersions(in []docstoreSvc.VersionInput) []docstoreSvc.VersionInput {
	out := append([]docstoreSvc.VersionInput(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// toVersions numbers new rows after the existing ones
func toVersions(in []docstoreSvc.VersionInput, existing int, at time.Time) []models.FormVersion {
	out := make([]models.FormVersion, 0, len(in))
	for i, v := range in {
		out = append(out, models.FormVersion{
			Idx:        existing + i + 1,
			Version:    v.Version,
			SchemaJSON: v.SchemaJSON,
			Changelog:  v.Changelog,
			CreatedAt:  at,
		})
	}
	return out
}
