package draft

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"formbuilder/internal/domain"
	"formbuilder/internal/editorconfig"
	"formbuilder/internal/storage/kv"
)

// manualClock fires timers only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward, running due timers in order
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if !t.done && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			if target > c.now {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at > c.now {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// Pending counts timers that have not fired or been stopped
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type saveRecorder struct {
	mu   sync.Mutex
	reqs []SaveRequest
	err  error
}

func (r *saveRecorder) save(_ context.Context, req SaveRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func (r *saveRecorder) calls() []SaveRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SaveRequest(nil), r.reqs...)
}

func (r *saveRecorder) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

type harness struct {
	ctrl     *Controller
	editor   *TextEditor
	clock    *manualClock
	saves    *saveRecorder
	fallback *kv.MemoryStore

	mu       sync.Mutex
	statuses []Status
	errs     []error
}

func newHarness(t *testing.T, autosave bool, mutate ...func(*Options)) *harness {
	t.Helper()
	registry, err := editorconfig.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		editor:   NewTextEditor(registry.Config("en"), ""),
		clock:    &manualClock{},
		saves:    &saveRecorder{},
		fallback: kv.NewMemoryStore(),
	}
	opts := Options{
		Editor:   h.editor,
		Fallback: h.fallback,
		Clock:    h.clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnStatus: func(s Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, s)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	}
	if autosave {
		opts.Save = h.saves.save
	}
	for _, m := range mutate {
		m(&opts)
	}

	h.ctrl, err = New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

const (
	emptySchema = `{"pages":[]}`
	editA       = `{"title":"Sleep Survey","pages":[{"name":"p1"}]}`
	editB       = `{"title":"Sleep Survey","pages":[{"name":"p1"},{"name":"p2"}]}`
)

func TestNewRequiresEditor(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without editor")
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "new")

	h.editor.Edit(editA)
	if got := h.ctrl.SaveStatus(); got != StatusSaving {
		t.Fatalf("status after edit = %q, want saving", got)
	}
	h.clock.Advance(40 * time.Millisecond)
	h.editor.Edit(editB)

	h.clock.Advance(499 * time.Millisecond)
	if n := len(h.saves.calls()); n != 0 {
		t.Fatalf("saves before debounce elapsed = %d", n)
	}

	h.clock.Advance(time.Millisecond)
	calls := h.saves.calls()
	if len(calls) != 1 {
		t.Fatalf("saves = %d, want 1", len(calls))
	}
	want := SaveRequest{SchemaJSON: editB, Title: "Sleep Survey", Slug: "sleep-survey"}
	if calls[0] != want {
		t.Errorf("save request = %+v, want %+v", calls[0], want)
	}

	if h.ctrl.HasChanges() {
		t.Error("HasChanges after successful save")
	}
	if h.ctrl.Baseline() != editB {
		t.Errorf("baseline = %q", h.ctrl.Baseline())
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaved {
		t.Errorf("status = %q, want saved", got)
	}

	h.clock.Advance(2999 * time.Millisecond)
	if got := h.ctrl.SaveStatus(); got != StatusSaved {
		t.Errorf("status before badge elapsed = %q", got)
	}
	h.clock.Advance(time.Millisecond)
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status after badge = %q, want idle", got)
	}

	h.mu.Lock()
	statuses := append([]Status(nil), h.statuses...)
	h.mu.Unlock()
	wantStatuses := []Status{StatusSaving, StatusSaved, StatusIdle}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("status callbacks = %v, want %v", statuses, wantStatuses)
	}
	for i := range wantStatuses {
		if statuses[i] != wantStatuses[i] {
			t.Errorf("status callbacks = %v, want %v", statuses, wantStatuses)
			break
		}
	}
}

func TestFallbackWrittenBeforeSave(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "form-7")

	h.editor.Edit(editA)
	h.clock.Advance(500 * time.Millisecond)

	got, err := h.fallback.Get(context.Background(), "dl-draft-form-7")
	if err != nil {
		t.Fatalf("fallback missing: %v", err)
	}
	if got != editA {
		t.Errorf("fallback = %q", got)
	}
}

func TestSaveFailureLeavesChanges(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	boom := errors.New("store down")
	h.saves.setErr(boom)
	h.editor.Edit(editA)
	h.clock.Advance(500 * time.Millisecond)

	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
	if !h.ctrl.HasChanges() {
		t.Error("HasChanges false after failed save")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want no retry", h.clock.Pending())
	}

	errs := h.errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	var saveErr *SaveError
	if !errors.As(errs[0], &saveErr) || saveErr.Phase != PhasePersist || !errors.Is(errs[0], boom) {
		t.Errorf("error = %#v", errs[0])
	}

	// next edit re-arms
	h.saves.setErr(nil)
	h.editor.Edit(editB)
	h.clock.Advance(500 * time.Millisecond)
	if n := len(h.saves.calls()); n != 2 {
		t.Errorf("saves = %d, want 2", n)
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges after retry succeeded")
	}
}

func TestInvalidContentNotSaved(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(`{"pages":[`)
	h.clock.Advance(500 * time.Millisecond)

	if n := len(h.saves.calls()); n != 0 {
		t.Errorf("saves = %d, want 0", n)
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status = %q", got)
	}
	errs := h.errors()
	var saveErr *SaveError
	if len(errs) != 1 || !errors.As(errs[0], &saveErr) || saveErr.Phase != PhaseValidate {
		t.Fatalf("errors = %v", errs)
	}
	if !errors.Is(errs[0], domain.ErrValidation) {
		t.Errorf("error does not wrap ErrValidation: %v", errs[0])
	}
	if _, err := h.fallback.Get(context.Background(), "dl-draft-k"); err == nil {
		t.Error("invalid content written to fallback")
	}
}

func TestUndoBeforeDebounceCancelsSave(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(editA)
	h.editor.Edit(emptySchema)
	h.clock.Advance(time.Second)

	if n := len(h.saves.calls()); n != 0 {
		t.Errorf("saves = %d, want 0", n)
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status = %q", got)
	}
	if h.ctrl.BlockNavigation() {
		t.Error("BlockNavigation with nothing to save")
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	// nothing to reset
	h.ctrl.Reset()
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("no-op reset changed status to %q", got)
	}
	if _, err := h.fallback.Get(context.Background(), "dl-draft-k"); err == nil {
		t.Error("no-op reset wrote fallback")
	}

	h.editor.Edit(editA)
	h.ctrl.Reset()

	if h.editor.Text() != emptySchema {
		t.Errorf("editor text = %q, want original", h.editor.Text())
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges after reset")
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaved {
		t.Errorf("status = %q, want saved", got)
	}
	if got, _ := h.fallback.Get(context.Background(), "dl-draft-k"); got != emptySchema {
		t.Errorf("fallback = %q", got)
	}

	h.clock.Advance(1500 * time.Millisecond)
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status after reset badge = %q", got)
	}
	if n := len(h.saves.calls()); n != 0 {
		t.Errorf("reset let the pending save fire: %d saves", n)
	}
}

func TestResetAfterSaveRestoresOriginal(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(editA)
	h.clock.Advance(500 * time.Millisecond)
	h.editor.Edit(editB)
	h.ctrl.Reset()

	if h.editor.Text() != emptySchema || h.ctrl.Baseline() != emptySchema {
		t.Errorf("text/baseline = %q/%q", h.editor.Text(), h.ctrl.Baseline())
	}
}

func TestManualModeMarkSaved(t *testing.T) {
	h := newHarness(t, false)
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(editA)
	if !h.ctrl.HasChanges() || !h.ctrl.BlockNavigation() {
		t.Fatal("edit not tracked")
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("manual mode status = %q", got)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("manual mode armed %d timers", h.clock.Pending())
	}

	h.ctrl.MarkSaved()
	if h.ctrl.HasChanges() || h.ctrl.BlockNavigation() {
		t.Error("still dirty after MarkSaved")
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("MarkSaved touched status: %q", got)
	}

	// reset returns to the re-anchored original
	h.ctrl.SetOriginalText(editA)
	h.editor.Edit(editB)
	h.ctrl.Reset()
	if h.editor.Text() != editA {
		t.Errorf("text = %q, want re-anchored original", h.editor.Text())
	}
	if h.ctrl.OriginalText() != editA {
		t.Errorf("OriginalText = %q", h.ctrl.OriginalText())
	}
}

func TestDisableMidSession(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(editA)
	h.ctrl.SetEnabled(false)

	if h.ctrl.BlockNavigation() {
		t.Error("BlockNavigation while disabled")
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges while disabled")
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status = %q", got)
	}
	if h.editor.Listeners() != 0 {
		t.Errorf("listeners = %d, want 0", h.editor.Listeners())
	}

	h.editor.Edit(editB)
	h.ctrl.HandleChange()
	h.ctrl.MarkSaved()
	h.ctrl.Reset()
	h.clock.Advance(time.Minute)

	if n := len(h.saves.calls()); n != 0 {
		t.Errorf("saves while disabled = %d", n)
	}
	if h.editor.Text() != editB {
		t.Errorf("disabled controller touched the editor")
	}

	h.ctrl.SetEnabled(true)
	if h.editor.Listeners() != 1 {
		t.Errorf("listeners after enable = %d", h.editor.Listeners())
	}
	h.editor.Edit(editA)
	h.clock.Advance(500 * time.Millisecond)
	if n := len(h.saves.calls()); n != 1 {
		t.Errorf("saves after re-enable = %d", n)
	}
}

func TestStartDisabledDefersInitialize(t *testing.T) {
	h := newHarness(t, true, func(o *Options) { o.StartDisabled = true })

	h.ctrl.Initialize(emptySchema, "k")
	if h.editor.Text() != "" {
		t.Errorf("initialized while disabled: %q", h.editor.Text())
	}
	if h.editor.Listeners() != 0 {
		t.Error("listener registered while disabled")
	}

	h.ctrl.SetEnabled(true)
	if h.editor.Text() != emptySchema || h.ctrl.OriginalText() != emptySchema {
		t.Errorf("pending initialize not applied")
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges right after initialize")
	}
}

func TestInitializeIdempotentPerSession(t *testing.T) {
	h := newHarness(t, false)
	h.ctrl.Initialize(emptySchema, "new")
	h.editor.Edit(editA)

	h.ctrl.Initialize(emptySchema, "new")
	if h.editor.Text() != editA {
		t.Error("same key and text re-initialized")
	}

	h.ctrl.Initialize(editB, "form-1")
	if h.editor.Text() != editB || h.ctrl.OriginalText() != editB || h.ctrl.Baseline() != editB {
		t.Error("new key did not re-initialize")
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges after re-initialize")
	}
}

func TestEditorSaveAcknowledged(t *testing.T) {
	h := newHarness(t, true)
	h.ctrl.Initialize(emptySchema, "k")

	if err := h.editor.Save(); err != nil {
		t.Errorf("editor save = %v", err)
	}
	if n := len(h.saves.calls()); n != 0 {
		t.Errorf("editor save reached the save func %d times", n)
	}
}

func TestBlockNavigationWhileSaving(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, true, func(o *Options) {
		o.Save = func(ctx context.Context, req SaveRequest) error {
			close(started)
			<-release
			return nil
		}
	})
	h.ctrl.Initialize(emptySchema, "k")
	h.editor.Edit(editA)

	done := make(chan struct{})
	go func() {
		h.clock.Advance(500 * time.Millisecond)
		close(done)
	}()
	<-started

	if !h.ctrl.BlockNavigation() {
		t.Error("BlockNavigation false while save in flight")
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaving {
		t.Errorf("status = %q", got)
	}

	close(release)
	<-done
	if h.ctrl.BlockNavigation() {
		t.Error("BlockNavigation true after save completed")
	}
}

func TestNewestCompletionWins(t *testing.T) {
	var mu sync.Mutex
	gates := map[string]chan error{
		editA: make(chan error),
		editB: make(chan error),
	}
	started := make(chan string, 2)
	h := newHarness(t, true, func(o *Options) {
		o.Save = func(ctx context.Context, req SaveRequest) error {
			mu.Lock()
			gate := gates[req.SchemaJSON]
			mu.Unlock()
			started <- req.SchemaJSON
			return <-gate
		}
	})
	h.ctrl.Initialize(emptySchema, "k")

	h.editor.Edit(editA)
	doneA := make(chan struct{})
	go func() { h.clock.Advance(500 * time.Millisecond); close(doneA) }()
	<-started

	h.editor.Edit(editB)
	doneB := make(chan struct{})
	go func() { h.clock.Advance(500 * time.Millisecond); close(doneB) }()
	<-started

	gates[editB] <- nil
	<-doneB
	if h.ctrl.Baseline() != editB {
		t.Errorf("baseline = %q, want second save", h.ctrl.Baseline())
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaving {
		t.Errorf("status with a save still running = %q", got)
	}

	gates[editA] <- nil
	<-doneA
	if h.ctrl.Baseline() != editB {
		t.Errorf("older completion moved the baseline to %q", h.ctrl.Baseline())
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges after both saves")
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaved {
		t.Errorf("status = %q, want saved", got)
	}
}

func TestUndoDuringSaveIsSavedAfterwards(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var saved []string
	h := newHarness(t, true, func(o *Options) {
		o.Save = func(ctx context.Context, req SaveRequest) error {
			mu.Lock()
			first := len(saved) == 0
			saved = append(saved, req.SchemaJSON)
			mu.Unlock()
			if first {
				started <- struct{}{}
				<-release
			}
			return nil
		}
	})
	h.ctrl.Initialize(emptySchema, "k")
	h.editor.Edit(editA)

	done := make(chan struct{})
	go func() { h.clock.Advance(500 * time.Millisecond); close(done) }()
	<-started

	// back to the old baseline while editA is still being written
	h.editor.Edit(emptySchema)
	close(release)
	<-done

	if h.ctrl.Baseline() != editA {
		t.Fatalf("baseline = %q, want the completed save", h.ctrl.Baseline())
	}
	if !h.ctrl.HasChanges() {
		t.Fatal("undo not seen as a change")
	}
	if got := h.ctrl.SaveStatus(); got != StatusSaving {
		t.Errorf("status = %q, want saving with a save queued", got)
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want the re-armed debounce", h.clock.Pending())
	}

	h.clock.Advance(500 * time.Millisecond)
	mu.Lock()
	got := append([]string(nil), saved...)
	mu.Unlock()
	if len(got) != 2 || got[1] != emptySchema {
		t.Fatalf("saves = %q, want the undone content saved second", got)
	}
	if h.ctrl.HasChanges() {
		t.Error("HasChanges after the follow-up save")
	}
	if status := h.ctrl.SaveStatus(); status != StatusSaved {
		t.Errorf("status = %q, want saved", status)
	}
}

func TestCompletionAfterDisableIsIgnored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, true, func(o *Options) {
		o.Save = func(ctx context.Context, req SaveRequest) error {
			close(started)
			<-release
			return errors.New("late failure")
		}
	})
	h.ctrl.Initialize(emptySchema, "k")
	h.editor.Edit(editA)

	done := make(chan struct{})
	go func() { h.clock.Advance(500 * time.Millisecond); close(done) }()
	<-started

	h.ctrl.Close()
	close(release)
	<-done

	if len(h.errors()) != 0 {
		t.Errorf("error reported after close: %v", h.errors())
	}
	if got := h.ctrl.SaveStatus(); got != StatusIdle {
		t.Errorf("status = %q", got)
	}

	h.ctrl.SetEnabled(true)
	if h.ctrl.Enabled() {
		t.Error("closed controller re-enabled")
	}
}
