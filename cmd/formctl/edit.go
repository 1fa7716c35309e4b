package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	"formbuilder/internal/service/draft"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [NAME]",
	Short: "Autosave a schema file while you edit it",
	Long: `Writes the form's schema to --file (when NAME is given) and watches the file.
Every change is saved to the active backend after the autosave delay. Without
NAME the first save creates a new form. Stop with Ctrl-C; a pending save is
finished first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

var (
	editFile     string
	editInterval time.Duration
	editOnce     bool
)

const newFormSchema = `{"title":"Untitled Form","pages":[]}`

func init() {
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "schema file to watch (required)")
	editCmd.Flags().DurationVar(&editInterval, "interval", 200*time.Millisecond, "file poll interval")
	editCmd.Flags().BoolVar(&editOnce, "once", false, "apply the file once, wait for the save and exit")
	_ = editCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(editCmd)
}

// formSaver persists drafts and remembers the name assigned on first create
type formSaver struct {
	mu    sync.Mutex
	repo  formsRepo.FormRepository
	name  string
	saves int
}

func (s *formSaver) Save(ctx context.Context, req draft.SaveRequest) error {
	// one save at a time so a slow create cannot race a second create
	s.mu.Lock()
	defer s.mu.Unlock()

	input := models.UpsertInput{
		Name:       s.name,
		Title:      req.Title,
		SchemaJSON: req.SchemaJSON,
	}
	if req.Slug != "" {
		slug := req.Slug
		input.Slug = &slug
	}
	result, err := s.repo.Upsert(ctx, input)
	if err != nil {
		return err
	}
	s.name = result.Name
	s.saves++
	return nil
}

func (s *formSaver) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := &syncWriter{w: cmd.OutOrStdout()}
	defer out.Close()
	saver := &formSaver{repo: current.forms}

	text := newFormSchema
	if len(args) == 1 {
		form, err := current.forms.Get(ctx, args[0])
		if err != nil {
			return err
		}
		saver.name = form.Name
		text = form.SchemaJSON
		if err := os.WriteFile(editFile, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", editFile, err)
		}
	} else if _, err := os.Stat(editFile); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(editFile, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", editFile, err)
		}
	} else if err != nil {
		return err
	}

	cfg := current.editorConfig()
	editor := draft.NewTextEditor(cfg, text)
	ctrl, err := draft.New(draft.Options{
		Editor:     editor,
		Save:       saver.Save,
		Fallback:   current.store,
		Debounce:   current.cfg.AutosaveDebounce,
		SavedBadge: current.cfg.SavedBadge,
		Logger:     current.logger,
		OnStatus: func(s draft.Status) {
			if s != draft.StatusIdle {
				fmt.Fprintf(out, "[%s] %s\n", time.Now().Format("15:04:05"), cfg.T("status."+string(s)))
			}
		},
		OnError: func(err error) {
			fmt.Fprintf(out, "save failed: %v\n", err)
		},
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	sessionKey := saver.Name()
	if sessionKey == "" {
		sessionKey = editFile
	}
	ctrl.Initialize(text, sessionKey)

	fmt.Fprintf(out, "Watching %s (%s backend)\n", editFile, current.forms.Mode())
	if err := watchFile(ctx, editFile, editInterval, editor, editOnce); err != nil {
		return err
	}

	settle(ctrl, current.cfg.AutosaveDebounce+30*time.Second)
	if ctrl.HasChanges() {
		return errors.New("exiting with unsaved changes")
	}
	if name := saver.Name(); name != "" {
		fmt.Fprintf(out, "Form %s\n", name)
	}
	return nil
}

// watchFile applies the file content to the editor, then keeps feeding
// changes until ctx ends. With once it returns after the first pass.
func watchFile(ctx context.Context, path string, interval time.Duration, editor *draft.TextEditor, once bool) error {
	var lastMod time.Time
	apply := func(force bool) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !force && !info.ModTime().After(lastMod) {
			return nil
		}
		lastMod = info.ModTime()

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		if text := string(data); text != editor.Text() {
			editor.Edit(text)
		}
		return nil
	}

	if err := apply(true); err != nil || once {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := apply(false); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
	}
}

// syncWriter serializes status lines written from save callbacks. Writes
// after Close are dropped.
type syncWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *syncWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// settle waits for a pending or running save to finish
func settle(ctrl *draft.Controller, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for ctrl.SaveStatus() == draft.StatusSaving && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}
