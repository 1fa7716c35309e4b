package docstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	docstoreSvc "formbuilder/internal/domain/services/docstore"
)

// memoryStore is an in-memory FormStore
type memoryStore struct {
	mu      sync.Mutex
	forms   map[string]*models.Form
	updates int
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{forms: make(map[string]*models.Form)}
}

func clone(f *models.Form) *models.Form {
	c := *f
	c.Versions = append([]models.FormVersion(nil), f.Versions...)
	return &c
}

func (m *memoryStore) Create(ctx context.Context, form *models.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.forms[form.Name]; ok {
		return &domain.ConflictError{Message: "form exists", ResourceType: "form", ResourceID: form.Name}
	}
	m.forms[form.Name] = clone(form)
	return nil
}

func (m *memoryStore) GetByName(ctx context.Context, name string) (*models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[name]
	if !ok {
		return nil, &domain.NotFoundError{Message: "form not found: " + name}
	}
	return clone(f), nil
}

func (m *memoryStore) List(ctx context.Context, opts formsRepo.ListOptions) ([]models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Form, 0, len(m.forms))
	for _, f := range m.forms {
		c := *f
		c.Versions = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Ascending {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) Update(ctx context.Context, form *models.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "update" {
		return errors.New("disk full")
	}
	stored, ok := m.forms[form.Name]
	if !ok {
		return &domain.NotFoundError{Message: "form not found: " + form.Name}
	}
	versions := stored.Versions
	*stored = *form
	stored.Versions = versions
	m.updates++
	return nil
}

func (m *memoryStore) AppendVersions(ctx context.Context, name string, versions []models.FormVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.forms[name]
	if !ok {
		return &domain.NotFoundError{Message: "form not found: " + name}
	}
	stored.Versions = append(stored.Versions, versions...)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.forms[name]; !ok {
		return &domain.NotFoundError{Message: "form not found: " + name}
	}
	delete(m.forms, name)
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

// passthroughTx runs fn directly and counts calls
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	p.calls++
	return fn(ctx)
}

func newTestService(t *testing.T) (*formService, *memoryStore, *passthroughTx) {
	t.Helper()
	store := newMemoryStore()
	tx := &passthroughTx{}
	svc := NewFormService(store, tx, slog.New(slog.NewTextHandler(io.Discard, nil))).(*formService)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc, store, tx
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateForm_Defaults(t *testing.T) {
	svc, _, tx := newTestService(t)

	form, err := svc.CreateForm(context.Background(), &docstoreSvc.CreateFormRequest{})
	if err != nil {
		t.Fatalf("CreateForm() error = %v", err)
	}
	if form.Name == "" {
		t.Error("expected generated name")
	}
	if form.Title != "Untitled Form" {
		t.Errorf("Title = %q", form.Title)
	}
	if form.Status != models.StatusDraft {
		t.Errorf("Status = %q", form.Status)
	}
	if form.SchemaJSON != "{}" {
		t.Errorf("SchemaJSON = %q", form.SchemaJSON)
	}
	if form.CurrentVersion != 1 || len(form.Versions) != 1 {
		t.Fatalf("version = %d, history = %d", form.CurrentVersion, len(form.Versions))
	}
	if got := form.Versions[0]; got.Version != 1 || got.Idx != 1 || got.Changelog == nil || *got.Changelog != "Initial" {
		t.Errorf("initial version = %+v", got)
	}
	if tx.calls != 1 {
		t.Errorf("ExecTx calls = %d, want 1", tx.calls)
	}
}

func TestCreateForm_WithVersions(t *testing.T) {
	svc, store, _ := newTestService(t)

	form, err := svc.CreateForm(context.Background(), &docstoreSvc.CreateFormRequest{
		Name:           "f-1",
		Title:          "Intake",
		SchemaJSON:     strPtr(`{"title":"Intake"}`),
		CurrentVersion: intPtr(1),
		Versions: []docstoreSvc.VersionInput{
			{Version: 1, SchemaJSON: `{"title":"Intake"}`, Changelog: strPtr("Initial")},
		},
	})
	if err != nil {
		t.Fatalf("CreateForm() error = %v", err)
	}
	if form.Name != "f-1" {
		t.Errorf("Name = %q", form.Name)
	}
	if _, ok := store.forms["f-1"]; !ok {
		t.Error("form not stored")
	}
}

func TestCreateForm_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  docstoreSvc.CreateFormRequest
	}{
		{name: "bad status", req: docstoreSvc.CreateFormRequest{Status: "Live"}},
		{name: "schema not json", req: docstoreSvc.CreateFormRequest{SchemaJSON: strPtr("{oops")}},
		{name: "zero version", req: docstoreSvc.CreateFormRequest{Versions: []docstoreSvc.VersionInput{{Version: 0}}}},
		{name: "duplicate version", req: docstoreSvc.CreateFormRequest{Versions: []docstoreSvc.VersionInput{{Version: 1}, {Version: 1}}}},
		{
			name: "current version mismatch",
			req: docstoreSvc.CreateFormRequest{
				CurrentVersion: intPtr(3),
				Versions:       []docstoreSvc.VersionInput{{Version: 1}, {Version: 2}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			req := tt.req
			_, err := svc.CreateForm(context.Background(), &req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if len(store.forms) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestCreateForm_Conflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: "dup"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: "dup"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestUpdateForm_AppendsOnlyNewVersions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: "f", SchemaJSON: strPtr(`{"v":1}`)})
	if err != nil {
		t.Fatal(err)
	}

	// client echoes version 1 and adds version 2
	updated, err := svc.UpdateForm(ctx, "f", &docstoreSvc.UpdateFormRequest{
		SchemaJSON:     strPtr(`{"v":2}`),
		CurrentVersion: intPtr(2),
		Versions: []docstoreSvc.VersionInput{
			{Version: 2, SchemaJSON: `{"v":2}`, Changelog: strPtr("Update")},
			{Version: 1, SchemaJSON: `{"tampered":true}`},
		},
	})
	if err != nil {
		t.Fatalf("UpdateForm() error = %v", err)
	}
	if updated.CurrentVersion != 2 {
		t.Errorf("CurrentVersion = %d, want 2", updated.CurrentVersion)
	}

	stored := store.forms["f"]
	if len(stored.Versions) != 2 {
		t.Fatalf("history = %d entries, want 2", len(stored.Versions))
	}
	if stored.Versions[0].SchemaJSON != created.Versions[0].SchemaJSON {
		t.Error("existing version was rewritten")
	}
	if got := stored.Versions[1]; got.Version != 2 || got.Idx != 2 {
		t.Errorf("appended = %+v", got)
	}
	if stored.SchemaJSON != `{"v":2}` {
		t.Errorf("SchemaJSON = %q", stored.SchemaJSON)
	}
}

func TestUpdateForm_FieldsOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: "f", Slug: strPtr("old")}); err != nil {
		t.Fatal(err)
	}

	published := svc.now()
	status := models.StatusPublished
	updated, err := svc.UpdateForm(ctx, "f", &docstoreSvc.UpdateFormRequest{
		Title:       strPtr("  "),
		Slug:        docstoreSvc.OptionalSlug{Present: true},
		Status:      &status,
		PublishedOn: docstoreSvc.OptionalTime{Present: true, Value: &published},
	})
	if err != nil {
		t.Fatalf("UpdateForm() error = %v", err)
	}
	if updated.Title != "Untitled Form" {
		t.Errorf("Title = %q", updated.Title)
	}
	if updated.Slug != nil {
		t.Errorf("Slug = %v, want cleared", *updated.Slug)
	}
	if updated.Status != models.StatusPublished || updated.PublishedOn == nil {
		t.Errorf("status = %q published = %v", updated.Status, updated.PublishedOn)
	}
	if updated.CurrentVersion != 1 || len(store.forms["f"].Versions) != 1 {
		t.Error("version history should be unchanged")
	}
}

func TestUpdateForm_Errors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		req     docstoreSvc.UpdateFormRequest
		failOn  string
		wantErr error
	}{
		{name: "missing form", target: "nope", wantErr: domain.ErrNotFound},
		{name: "current version ahead", target: "f", req: docstoreSvc.UpdateFormRequest{CurrentVersion: intPtr(5)}, wantErr: domain.ErrValidation},
		{name: "bad status", target: "f", req: docstoreSvc.UpdateFormRequest{Status: func() *models.FormStatus { s := models.FormStatus("x"); return &s }()}, wantErr: domain.ErrValidation},
		{name: "long slug", target: "f", req: docstoreSvc.UpdateFormRequest{Slug: docstoreSvc.OptionalSlug{Present: true, Value: strPtr(string(make([]byte, 65)))}}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			ctx := context.Background()
			if _, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: "f"}); err != nil {
				t.Fatal(err)
			}
			store.failOn = tt.failOn

			req := tt.req
			_, err := svc.UpdateForm(ctx, tt.target, &req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if store.updates != 0 {
				t.Error("store should not be written")
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := svc.CreateForm(ctx, &docstoreSvc.CreateFormRequest{Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := svc.ListForms(ctx, formsRepo.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "c" || list[1].Name != "b" {
		t.Errorf("ListForms() = %v", names(list))
	}

	if err := svc.DeleteForm(ctx, "b"); err != nil {
		t.Fatalf("DeleteForm() error = %v", err)
	}
	if _, err := svc.GetForm(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetForm() after delete error = %v", err)
	}
	if err := svc.DeleteForm(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second DeleteForm() error = %v", err)
	}
}

func names(forms []models.Form) []string {
	out := make([]string, len(forms))
	for i, f := range forms {
		out[i] = f.Name
	}
	return out
}
