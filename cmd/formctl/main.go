// Command formctl manages forms in the document store or the local store
// from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"
	"formbuilder/internal/domain/repositories"
	"formbuilder/internal/editorconfig"
	"formbuilder/internal/repository/local"
	"formbuilder/internal/repository/remote"
	"formbuilder/internal/repository/selector"
	"formbuilder/internal/storage/kv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ModeKey stores the mode chosen with "formctl mode" in the local store
const ModeKey = "dl-persist-mode"

// app holds everything a command needs
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     repositories.KeyValueStore
	forms     *selector.Selector
	responses *local.ResponseStore
	registry  *editorconfig.Registry
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

var (
	flagMode   string
	flagLocale string

	current *app
)

// openApp builds the app from configuration. Tests replace it.
var openApp = func(ctx context.Context) (*app, error) {
	cfg := config.Load()

	a := &app{cfg: cfg}

	logOut := io.Discard
	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, "formctl", 10)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		logOut = f
	}
	a.logger = config.NewLogger(cfg, logOut)

	store, closer, err := kv.Open(ctx, kv.Options{
		Kind:      cfg.LocalStore,
		Path:      cfg.LocalStorePath,
		RedisAddr: cfg.RedisAddr,
		Namespace: "formbuilder",
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	a.closers = append(a.closers, closer)
	a.store = store

	registry, err := editorconfig.NewRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	remoteRepo := remote.NewFormRepository(remote.NewClient(cfg.DocstoreURL, cfg.DocstoreToken), a.logger)
	localRepo := local.NewFormRepository(store, a.logger)
	a.responses = local.NewResponseStore(store)

	mode, err := effectiveMode(ctx, store, cfg.PersistMode)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.forms, err = selector.New(remoteRepo, localRepo, mode, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// effectiveMode picks --mode, then the stored choice, then PERSIST_MODE
func effectiveMode(ctx context.Context, store repositories.KeyValueStore, fallback string) (selector.Mode, error) {
	if flagMode != "" {
		return selector.ParseMode(flagMode)
	}
	stored, err := store.Get(ctx, ModeKey)
	switch {
	case err == nil:
		return selector.ParseMode(stored)
	case errors.Is(err, domain.ErrNotFound):
		return selector.ParseMode(fallback)
	default:
		return "", err
	}
}

func (a *app) editorConfig() editorconfig.Config {
	locale := flagLocale
	if locale == "" {
		locale = editorconfig.DefaultLocale
	}
	return a.registry.Config(locale)
}

var rootCmd = &cobra.Command{
	Use:           "formctl",
	Short:         "Manage form definitions and responses",
	Long:          `formctl lists, edits and lints form schemas stored in the document store or in the local store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.Close()
			current = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "persistence backend for this run: remote or local")
	rootCmd.PersistentFlags().StringVar(&flagLocale, "locale", "", "locale for editor labels (default en)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", strings.TrimSpace(err.Error()))
		if current != nil {
			current.Close()
		}
		os.Exit(1)
	}
}
