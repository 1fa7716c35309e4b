// Package draft tracks unsaved changes of one form being edited and persists
// them after a quiet period.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"
	"formbuilder/internal/domain/repositories"
	formsSvc "formbuilder/internal/service/forms"
)

// Status is the save badge state
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// DefaultFallbackPrefix prefixes the local copy written before each save
const DefaultFallbackPrefix = "dl-draft-"

// SaveRequest is what the controller hands to the persistence callback
type SaveRequest struct {
	SchemaJSON string
	Title      string
	Slug       string
}

// SaveFunc persists a draft. A returned error counts as a failed save.
type SaveFunc func(ctx context.Context, req SaveRequest) error

// Save phases reported in SaveError
const (
	PhaseValidate = "validate"
	PhasePersist  = "persist"
)

// SaveError describes a failed debounced save
type SaveError struct {
	Phase string
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("draft save (%s): %v", e.Phase, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Options configures a Controller. Editor is required; every other field
// has a usable zero value.
type Options struct {
	Editor Editor

	// Save enables autosave. Nil means manual saves only.
	Save SaveFunc

	// Fallback receives a copy of the content before every save and reset
	Fallback       repositories.KeyValueStore
	FallbackPrefix string

	Debounce    time.Duration
	SavedBadge  time.Duration
	ResetBadge  time.Duration
	SaveTimeout time.Duration // 0 = no deadline

	Clock  Clock
	Logger *slog.Logger

	// StartDisabled keeps the controller inert until SetEnabled(true)
	StartDisabled bool

	// OnStatus and OnError are called outside the controller lock
	OnStatus func(Status)
	OnError  func(error)
}

type initRequest struct {
	text string
	key  string
}

// Controller owns the save lifecycle of one editor session
type Controller struct {
	opts   Options
	editor Editor
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
	closed  bool

	// epoch changes on disable and re-initialization; callbacks from an
	// older epoch do nothing
	epoch uint64

	initialized bool
	sessionKey  string
	initText    string
	pendingInit *initRequest

	baseline string
	original string
	status   Status

	debounce    Timer
	debounceGen uint64
	badge       Timer
	badgeGen    uint64

	// saves are numbered when their timer fires; the newest completion
	// decides the baseline
	saveSeq       uint64
	lastCompleted uint64
	lastErr       error
	inFlight      int

	unsubscribe func()
}

// New creates a controller bound to opts.Editor
func New(opts Options) (*Controller, error) {
	if opts.Editor == nil {
		return nil, errors.New("draft: editor is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultAutosaveDebounce
	}
	if opts.SavedBadge <= 0 {
		opts.SavedBadge = config.DefaultSavedBadge
	}
	if opts.ResetBadge <= 0 {
		opts.ResetBadge = config.DefaultResetBadge
	}
	if opts.FallbackPrefix == "" {
		opts.FallbackPrefix = DefaultFallbackPrefix
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		opts:   opts,
		editor: opts.Editor,
		clock:  opts.Clock,
		logger: opts.Logger,
		status: StatusIdle,
	}
	if !opts.StartDisabled {
		c.SetEnabled(true)
	}
	return c, nil
}

// Initialize loads text as the session content. Repeating the same key and
// text is a no-op; anything else starts the session over. While disabled the
// request is kept and applied on enable.
func (c *Controller) Initialize(text, sessionKey string) {
	var after []func()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.enabled {
		c.pendingInit = &initRequest{text: text, key: sessionKey}
		c.mu.Unlock()
		return
	}
	c.initializeLocked(text, sessionKey, &after)
	c.mu.Unlock()
	run(after)
}

func (c *Controller) initializeLocked(text, sessionKey string, after *[]func()) {
	if c.initialized && c.sessionKey == sessionKey && c.initText == text {
		return
	}

	c.stopTimersLocked()
	c.epoch++
	c.initialized = true
	c.sessionKey = sessionKey
	c.initText = text
	c.baseline = text
	c.original = text
	c.lastCompleted = c.saveSeq
	c.lastErr = nil
	c.inFlight = 0
	c.editor.SetText(text)
	c.setStatusLocked(StatusIdle, after)

	c.logger.Debug("draft initialized", "session", sessionKey, "bytes", len(text))
}

// HandleChange reacts to an edit. It is registered as the editor's change
// listener while the controller is enabled.
func (c *Controller) HandleChange() {
	var after []func()
	c.mu.Lock()
	if !c.enabled || c.opts.Save == nil {
		c.mu.Unlock()
		return
	}

	if c.editor.Text() == c.baseline {
		// edit undone before the debounce fired
		if c.debounce != nil {
			c.stopDebounceLocked()
			if c.inFlight == 0 && c.status == StatusSaving {
				c.setStatusLocked(StatusIdle, &after)
			}
		}
		c.mu.Unlock()
		run(after)
		return
	}

	c.stopTimersLocked()
	c.setStatusLocked(StatusSaving, &after)
	c.armDebounceLocked()
	c.mu.Unlock()
	run(after)
}

func (c *Controller) armDebounceLocked() {
	c.debounceGen++
	epoch, gen := c.epoch, c.debounceGen
	c.debounce = c.clock.AfterFunc(c.opts.Debounce, func() { c.fire(epoch, gen) })
}

// fire runs the debounced save
func (c *Controller) fire(epoch, gen uint64) {
	var after []func()
	c.mu.Lock()
	if epoch != c.epoch || gen != c.debounceGen || c.debounce == nil {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.saveSeq++
	seq := c.saveSeq
	text := c.editor.Text()

	if !json.Valid([]byte(text)) {
		err := &SaveError{Phase: PhaseValidate, Err: fmt.Errorf("%w: content is not valid JSON", domain.ErrValidation)}
		c.completeLocked(seq, text, err, &after)
		c.mu.Unlock()
		run(after)
		return
	}

	c.inFlight++
	key := c.fallbackKeyLocked()
	c.mu.Unlock()

	c.writeFallback(key, text)

	title := formsSvc.TitleOf(text)
	req := SaveRequest{SchemaJSON: text, Title: title, Slug: formsSvc.Slugify(title)}

	ctx := context.Background()
	if c.opts.SaveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.SaveTimeout)
		defer cancel()
	}
	saveErr := c.opts.Save(ctx, req)

	c.mu.Lock()
	if epoch != c.epoch {
		// disabled or re-initialized while the save was running
		c.mu.Unlock()
		if saveErr != nil {
			c.logger.Debug("discarded failed save from previous session", "error", saveErr)
		}
		return
	}
	c.inFlight--
	if saveErr != nil {
		saveErr = &SaveError{Phase: PhasePersist, Err: saveErr}
	}
	c.completeLocked(seq, text, saveErr, &after)
	c.mu.Unlock()
	run(after)
}

// completeLocked records the outcome of save seq. Only the newest
// completion moves the baseline; the status settles once nothing newer is
// pending or running.
func (c *Controller) completeLocked(seq uint64, text string, err error, after *[]func()) {
	if seq > c.lastCompleted {
		c.lastCompleted = seq
		c.lastErr = err
		if err == nil {
			c.baseline = text
		}
	}

	// the editor moved away from the newly saved text while the save ran
	// (e.g. an undo back to the old baseline) and nothing is queued for it
	if err == nil && seq == c.lastCompleted && c.debounce == nil &&
		c.opts.Save != nil && c.editor.Text() != c.baseline {
		c.setStatusLocked(StatusSaving, after)
		c.armDebounceLocked()
	}

	if c.debounce == nil && c.inFlight == 0 && c.status == StatusSaving {
		if c.lastErr == nil {
			c.setStatusLocked(StatusSaved, after)
			c.armBadgeLocked(c.opts.SavedBadge)
		} else {
			c.setStatusLocked(StatusIdle, after)
		}
	}

	if err != nil {
		c.logger.Warn("draft save failed", "session", c.sessionKey, "error", err)
		if c.opts.OnError != nil {
			onError := c.opts.OnError
			*after = append(*after, func() { onError(err) })
		}
		return
	}
	c.logger.Debug("draft saved", "session", c.sessionKey, "seq", seq)
}

// Reset restores the content the session started with. No-op without changes.
func (c *Controller) Reset() {
	var after []func()
	c.mu.Lock()
	if !c.enabled || c.editor.Text() == c.baseline {
		c.mu.Unlock()
		return
	}

	c.stopTimersLocked()
	c.baseline = c.original
	c.lastCompleted = c.saveSeq
	c.lastErr = nil
	c.editor.SetText(c.original)
	c.setStatusLocked(StatusSaved, &after)
	c.armBadgeLocked(c.opts.ResetBadge)

	key, text := c.fallbackKeyLocked(), c.original
	c.mu.Unlock()

	c.writeFallback(key, text)
	run(after)
}

// MarkSaved records the current content as saved by some other path. The
// status is left alone.
func (c *Controller) MarkSaved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.baseline = c.editor.Text()
	c.lastCompleted = c.saveSeq
	c.lastErr = nil
}

// SetOriginalText moves the reset point, for manual save flows
func (c *Controller) SetOriginalText(text string) {
	c.mu.Lock()
	c.original = text
	c.mu.Unlock()
}

func (c *Controller) OriginalText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original
}

// Baseline returns the last content known to be saved
func (c *Controller) Baseline() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline
}

// HasChanges reports whether the editor content differs from the baseline
func (c *Controller) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasChangesLocked()
}

func (c *Controller) hasChangesLocked() bool {
	return c.enabled && c.editor.Text() != c.baseline
}

func (c *Controller) SaveStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// BlockNavigation reports whether leaving now would lose work
func (c *Controller) BlockNavigation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return false
	}
	return c.hasChangesLocked() || c.status == StatusSaving
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled switches all side effects on or off. Disabling cancels timers,
// detaches from the editor and turns running saves into no-ops.
func (c *Controller) SetEnabled(enabled bool) {
	var after []func()
	c.mu.Lock()
	switch {
	case c.closed || enabled == c.enabled:
	case enabled:
		c.enabled = true
		c.unsubscribe = c.editor.OnChange(c.HandleChange)
		c.editor.SetSaveHandler(acknowledgeSave)
		if p := c.pendingInit; p != nil {
			c.pendingInit = nil
			c.initializeLocked(p.text, p.key, &after)
		}
	default:
		c.enabled = false
		c.stopTimersLocked()
		c.epoch++
		c.inFlight = 0
		if c.unsubscribe != nil {
			c.unsubscribe()
			c.unsubscribe = nil
		}
		c.editor.SetSaveHandler(nil)
		c.setStatusLocked(StatusIdle, &after)
	}
	c.mu.Unlock()
	run(after)
}

// Close disables the controller for good
func (c *Controller) Close() {
	c.SetEnabled(false)
	c.mu.Lock()
	c.closed = true
	c.pendingInit = nil
	c.mu.Unlock()
}

// acknowledgeSave answers the editor's own save requests so only the
// controller persists
func acknowledgeSave(string) error { return nil }

func (c *Controller) setStatusLocked(s Status, after *[]func()) {
	if c.status == s {
		return
	}
	c.status = s
	if c.opts.OnStatus != nil {
		onStatus := c.opts.OnStatus
		*after = append(*after, func() { onStatus(s) })
	}
}

func (c *Controller) armBadgeLocked(d time.Duration) {
	c.badgeGen++
	epoch, gen := c.epoch, c.badgeGen
	c.badge = c.clock.AfterFunc(d, func() {
		var after []func()
		c.mu.Lock()
		if epoch == c.epoch && gen == c.badgeGen && c.badge != nil {
			c.badge = nil
			if c.status == StatusSaved {
				c.setStatusLocked(StatusIdle, &after)
			}
		}
		c.mu.Unlock()
		run(after)
	})
}

func (c *Controller) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGen++
}

func (c *Controller) stopTimersLocked() {
	c.stopDebounceLocked()
	if c.badge != nil {
		c.badge.Stop()
		c.badge = nil
	}
	c.badgeGen++
}

func (c *Controller) fallbackKeyLocked() string {
	key := c.sessionKey
	if key == "" {
		key = "new"
	}
	return c.opts.FallbackPrefix + key
}

// writeFallback stores a local copy; failures are logged, not fatal
func (c *Controller) writeFallback(key, text string) {
	if c.opts.Fallback == nil {
		return
	}
	if err := c.opts.Fallback.Set(context.Background(), key, text); err != nil {
		c.logger.Warn("draft fallback write failed", "key", key, "error", err)
	}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
