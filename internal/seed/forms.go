package seed

import (
	"context"
	"errors"
	"log/slog"

	"formbuilder/internal/domain"
	docstoreSvc "formbuilder/internal/domain/services/docstore"
)

// FormSeeder creates sample forms through the document store service
type FormSeeder struct {
	service docstoreSvc.FormService
	logger  *slog.Logger
}

// NewFormSeeder creates a new form seeder
func NewFormSeeder(service docstoreSvc.FormService, logger *slog.Logger) *FormSeeder {
	return &FormSeeder{
		service: service,
		logger:  logger,
	}
}

// Seed inserts every sample form. Forms that already exist are skipped.
// Returns the number of forms created.
func (s *FormSeeder) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, req := range SampleForms() {
		form, err := s.service.CreateForm(ctx, req)
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info("seed form exists", "name", req.Name)
			continue
		}
		if err != nil {
			return created, err
		}
		created++
		s.logger.Info("seed form created", "name", form.Name, "title", form.Title, "version", form.CurrentVersion)
	}
	return created, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

const intakeV1 = `{"title":"Customer Intake","pages":[{"name":"page1","elements":[` +
	`{"type":"text","name":"fullName","title":"Full name","dreamlinkId":"dl-001"},` +
	`{"type":"text","name":"email","title":"Email","inputType":"email","dreamlinkId":"dl-002"}]}]}`

const intakeV2 = `{"title":"Customer Intake","pages":[{"name":"page1","elements":[` +
	`{"type":"text","name":"fullName","title":"Full name","dreamlinkId":"dl-001"},` +
	`{"type":"text","name":"email","title":"Email","inputType":"email","dreamlinkId":"dl-002"},` +
	`{"type":"dropdown","name":"source","title":"How did you hear about us?","choices":["Friend","Search","Event"],"dreamlinkId":"dl-003"}]}]}`

const siteVisit = `{"title":"Site Visit Report","pages":[{"name":"page1","elements":[` +
	`{"type":"location-picker","name":"site","title":"Site location","dreamlinkId":"dl-004"},` +
	`{"type":"panel","name":"observations","elements":[` +
	`{"type":"comment","name":"notes","title":"Notes","dreamlinkId":"dl-005"},` +
	`{"type":"rating","name":"condition","title":"Condition","dreamlinkId":"dl-006"}]}]}]}`

// SampleForms returns the fixed seed set. Names are stable so reseeding is idempotent.
func SampleForms() []*docstoreSvc.CreateFormRequest {
	return []*docstoreSvc.CreateFormRequest{
		{
			Name:           "seed-customer-intake",
			Title:          "Customer Intake",
			Slug:           strPtr("customer-intake"),
			SchemaJSON:     strPtr(intakeV2),
			CurrentVersion: intPtr(2),
			Versions: []docstoreSvc.VersionInput{
				{Version: 1, SchemaJSON: intakeV1, Changelog: strPtr("Initial")},
				{Version: 2, SchemaJSON: intakeV2, Changelog: strPtr("Add referral source")},
			},
		},
		{
			Name:       "seed-site-visit",
			Title:      "Site Visit Report",
			Slug:       strPtr("site-visit-report"),
			SchemaJSON: strPtr(siteVisit),
		},
	}
}
