package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lavignes/roolz/internal/config"
	"github.com/lavignes/roolz/internal/registry"
	"github.com/lavignes/roolz/internal/reload"
	"github.com/lavignes/roolz/internal/session"
	"github.com/lavignes/roolz/internal/watcher"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Listen     string
	Database   string
	Packages   []string
	DebounceMS int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session server and package watcher",
		Long: `Start the roolz service: a WebSocket session endpoint that compiles
submitted rule text before acceptance, and a filesystem watcher that
keeps the registry in sync with the configured package directories.

Settings come from a CUE config file when --config is given; individual
flags override the file.

Example:
  roolz serve --config roolz.cue
  roolz serve --listen 127.0.0.1:1234 --db roolz.db --package ./rules`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "session server address")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to registry database")
	cmd.Flags().StringArrayVarP(&opts.Packages, "package", "p", nil, "package directory to watch (repeatable)")
	cmd.Flags().IntVar(&opts.DebounceMS, "debounce-ms", 0, "watcher debounce window in milliseconds")

	return cmd
}

// resolveConfig builds the effective configuration from the config file
// (when given) and flag overrides.
func resolveConfig(opts *ServeOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if len(opts.Packages) > 0 {
		cfg.Packages = opts.Packages
	}
	if opts.DebounceMS > 0 {
		cfg.DebounceMS = opts.DebounceMS
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	slog.Info("opening registry", "path", cfg.Database)
	reg, err := registry.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open registry", err)
	}
	defer func() {
		if closeErr := reg.Close(); closeErr != nil {
			slog.Error("error closing registry", "error", closeErr)
		}
	}()

	reloader := reload.New(reg, slog.Default())

	var fileWatcher *watcher.Watcher
	if len(cfg.Packages) > 0 {
		fileWatcher, err = watcher.New(cfg.Debounce(), reloader.Enqueue, slog.Default())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create watcher", err)
		}
		for _, dir := range cfg.Packages {
			if err := fileWatcher.Watch(dir); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
			}
			slog.Info("watching package directory", "dir", dir)
		}
	}

	server := session.NewServer(reg, slog.Default())

	// Setup signal handling for graceful shutdown. Use the command's
	// context if available (for testing).
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Bring the registry up to date with what is on disk before serving.
	scanPackages(cfg.Packages, reloader)

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	run := func(name string, f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("component failed", "component", name, "error", err)
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	run("reload loop", reloader.Run)
	if fileWatcher != nil {
		run("watcher", fileWatcher.Run)
	}
	run("session server", func(ctx context.Context) error {
		return server.ListenAndServe(ctx, cfg.Listen)
	})

	slog.Info("serving", "listen", cfg.Listen, "packages", len(cfg.Packages))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving sessions on %s. Press Ctrl-C to stop.\n", cfg.Listen)

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return WrapExitError(ExitFailure, "service error", err)
	}
	slog.Info("stopped gracefully")
	return nil
}

// scanPackages enqueues a write event for every rule file currently on
// disk so the registry converges at startup, not just on change.
func scanPackages(dirs []string, reloader *reload.Reloader) {
	start := time.Now()
	count := 0
	for _, dir := range dirs {
		files, err := FindRuleFiles(dir)
		if err != nil {
			slog.Warn("initial scan failed", "dir", dir, "error", err)
			continue
		}
		for _, file := range files {
			if reloader.Enqueue(reload.Event{Type: reload.EventWrite, Path: file}) {
				count++
			}
		}
	}
	if count > 0 {
		slog.Info("initial scan queued", "sources", count, "took", time.Since(start))
	}
}
