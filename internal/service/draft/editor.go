package draft

import (
	"sync"

	"formbuilder/internal/editorconfig"
)

// SaveHandler receives the editor's own save requests (keyboard shortcut,
// toolbar button). Returning nil acknowledges the save.
type SaveHandler func(text string) error

// Editor is the editing widget as seen by the controller
type Editor interface {
	// Text returns the serialized schema currently shown
	Text() string

	// SetText replaces the content without raising a change notification
	SetText(text string)

	// OnChange registers fn for user edits and returns its unsubscribe func
	OnChange(fn func()) (unsubscribe func())

	// SetSaveHandler replaces the built-in save handling; nil restores it
	SetSaveHandler(h SaveHandler)
}

// TextEditor is an in-memory Editor holding the schema as text
type TextEditor struct {
	mu        sync.Mutex
	cfg       editorconfig.Config
	text      string
	listeners map[int]func()
	nextID    int
	save      SaveHandler
}

var _ Editor = (*TextEditor)(nil)

// NewTextEditor creates an editor configured with cfg (question types,
// properties and UI strings) showing text.
func NewTextEditor(cfg editorconfig.Config, text string) *TextEditor {
	return &TextEditor{
		cfg:       cfg,
		text:      text,
		listeners: make(map[int]func()),
	}
}

// Config returns the configuration the editor was built with
func (e *TextEditor) Config() editorconfig.Config {
	return e.cfg
}

func (e *TextEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *TextEditor) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

// Edit applies a user edit and notifies listeners
func (e *TextEditor) Edit(text string) {
	e.mu.Lock()
	e.text = text
	listeners := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (e *TextEditor) OnChange(fn func()) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *TextEditor) SetSaveHandler(h SaveHandler) {
	e.mu.Lock()
	e.save = h
	e.mu.Unlock()
}

// Save runs the installed save handler. Without one the save is a no-op.
func (e *TextEditor) Save() error {
	e.mu.Lock()
	h, text := e.save, e.text
	e.mu.Unlock()

	if h == nil {
		return nil
	}
	return h(text)
}

// Listeners reports how many change listeners are registered
func (e *TextEditor) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
