// Package selector exposes one FormRepository whose backend is picked by a
// runtime mode flag.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"

	"golang.org/x/sync/errgroup"
)

// Mode names the active backend
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

// ParseMode accepts "remote", "local" and the legacy alias "frappe"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "frappe":
		return ModeRemote, nil
	case "local":
		return ModeLocal, nil
	}
	return "", fmt.Errorf("%w: unknown persistence mode %q", domain.ErrValidation, s)
}

// Selector dispatches every call to the backend active at call time.
// Switching modes never migrates data.
type Selector struct {
	remote formsRepo.FormRepository
	local  formsRepo.FormRepository
	mode   atomic.Value // Mode
	logger *slog.Logger
}

var _ formsRepo.FormRepository = (*Selector)(nil)

// New builds a selector over both backends, starting in mode
func New(remote, local formsRepo.FormRepository, mode Mode, logger *slog.Logger) (*Selector, error) {
	s := &Selector{remote: remote, local: local, logger: logger}
	if err := s.SetMode(mode); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Selector) Mode() Mode {
	return s.mode.Load().(Mode)
}

// SetMode switches the active backend. Unknown modes are rejected and leave
// the current mode in place.
func (s *Selector) SetMode(mode Mode) error {
	if mode != ModeRemote && mode != ModeLocal {
		return fmt.Errorf("%w: unknown persistence mode %q", domain.ErrValidation, mode)
	}
	prev, _ := s.mode.Swap(mode).(Mode)
	if prev != mode && prev != "" {
		s.logger.Info("persistence mode changed", "from", prev, "to", mode)
	}
	return nil
}

// Active returns the repository for the current mode
func (s *Selector) Active() formsRepo.FormRepository {
	if s.Mode() == ModeLocal {
		return s.local
	}
	return s.remote
}

func (s *Selector) List(ctx context.Context) ([]models.FormSummary, error) {
	return s.Active().List(ctx)
}

func (s *Selector) Get(ctx context.Context, name string) (*models.FormDetail, error) {
	return s.Active().Get(ctx, name)
}

func (s *Selector) Upsert(ctx context.Context, input models.UpsertInput) (*models.UpsertResult, error) {
	return s.Active().Upsert(ctx, input)
}

func (s *Selector) Remove(ctx context.Context, name string) error {
	return s.Active().Remove(ctx, name)
}

func (s *Selector) Ping(ctx context.Context) error {
	return s.Active().Ping(ctx)
}

// BackendStatus is the outcome of pinging one backend
type BackendStatus struct {
	Mode    Mode          `json:"mode"`
	Active  bool          `json:"active"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Health pings both backends concurrently. Individual failures are reported
// in the result, not returned; the error is only set when ctx ends first.
func (s *Selector) Health(ctx context.Context) ([]BackendStatus, error) {
	active := s.Mode()
	backends := []struct {
		mode Mode
		repo formsRepo.FormRepository
	}{
		{ModeRemote, s.remote},
		{ModeLocal, s.local},
	}

	out := make([]BackendStatus, len(backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		g.Go(func() error {
			start := time.Now()
			err := b.repo.Ping(gctx)
			out[i] = BackendStatus{
				Mode:    b.mode,
				Active:  b.mode == active,
				OK:      err == nil,
				Latency: time.Since(start),
			}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
