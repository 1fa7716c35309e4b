package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
)

// recordingRepo counts calls and returns canned values
type recordingRepo struct {
	name    string
	calls   []string
	pingErr error
}

func (r *recordingRepo) List(ctx context.Context) ([]models.FormSummary, error) {
	r.calls = append(r.calls, "list")
	return []models.FormSummary{{Name: r.name}}, nil
}

func (r *recordingRepo) Get(ctx context.Context, name string) (*models.FormDetail, error) {
	r.calls = append(r.calls, "get")
	return &models.FormDetail{FormSummary: models.FormSummary{Name: r.name}}, nil
}

func (r *recordingRepo) Upsert(ctx context.Context, input models.UpsertInput) (*models.UpsertResult, error) {
	r.calls = append(r.calls, "upsert")
	return &models.UpsertResult{Name: r.name}, nil
}

func (r *recordingRepo) Remove(ctx context.Context, name string) error {
	r.calls = append(r.calls, "remove")
	return nil
}

func (r *recordingRepo) Ping(ctx context.Context) error {
	return r.pingErr
}

func newTestSelector(t *testing.T, mode Mode) (*Selector, *recordingRepo, *recordingRepo) {
	t.Helper()
	remote := &recordingRepo{name: "remote"}
	local := &recordingRepo{name: "local"}
	s, err := New(remote, local, mode, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s, remote, local
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"remote", ModeRemote, false},
		{"frappe", ModeRemote, false},
		{" Local ", ModeLocal, false},
		{"cloud", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDispatchFollowsMode(t *testing.T) {
	s, remote, local := newTestSelector(t, ModeRemote)
	ctx := context.Background()

	rows, _ := s.List(ctx)
	if rows[0].Name != "remote" {
		t.Errorf("list went to %q", rows[0].Name)
	}

	if err := s.SetMode(ModeLocal); err != nil {
		t.Fatal(err)
	}
	res, _ := s.Upsert(ctx, models.UpsertInput{SchemaJSON: "{}"})
	if res.Name != "local" {
		t.Errorf("upsert went to %q", res.Name)
	}
	_, _ = s.Get(ctx, "x")
	_ = s.Remove(ctx, "x")

	if len(remote.calls) != 1 {
		t.Errorf("remote calls = %v, want only the first list", remote.calls)
	}
	if len(local.calls) != 3 {
		t.Errorf("local calls = %v", local.calls)
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	s, _, _ := newTestSelector(t, ModeLocal)

	err := s.SetMode("cloud")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if s.Mode() != ModeLocal {
		t.Errorf("mode = %q, want unchanged", s.Mode())
	}

	if _, err := New(&recordingRepo{}, &recordingRepo{}, "", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error for empty mode")
	}
}

func TestHealth(t *testing.T) {
	s, remote, _ := newTestSelector(t, ModeLocal)
	remote.pingErr = errors.New("connection refused")

	statuses, err := s.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d", len(statuses))
	}
	r, l := statuses[0], statuses[1]
	if r.Mode != ModeRemote || r.OK || r.Active || r.Error == "" {
		t.Errorf("remote status = %+v", r)
	}
	if l.Mode != ModeLocal || !l.OK || !l.Active {
		t.Errorf("local status = %+v", l)
	}
}

func TestHealthCancelled(t *testing.T) {
	s, _, _ := newTestSelector(t, ModeRemote)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Health(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
