package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/config"
	"github.com/hupe1980/txtwatch/internal/dispatch"
	"github.com/hupe1980/txtwatch/internal/fsread"
	"github.com/hupe1980/txtwatch/internal/logging"
	"github.com/hupe1980/txtwatch/internal/output"
	"github.com/hupe1980/txtwatch/internal/registry"
	"github.com/hupe1980/txtwatch/internal/session"
)

type openOptions struct {
	pick        bool
	yes         bool
	no          bool
	once        bool
	showContent bool
	format      string
	export      string
}

func newOpenCommand() *cobra.Command {
	opts := &openOptions{}

	cmd := &cobra.Command{
		Use:   "open [file...]",
		Short: "Open text files and follow their changes",
		Long: `Open selects each given file in order, then watches the directory of
the most recently added file until interrupted.

A file whose name is already tracked is compared with the stored copy.
Identical copies are left alone; a differing copy replaces the stored one
only after confirmation, bumping its revision. Use --yes or --no to answer
that question without a prompt. Without a terminal and without either
flag, overwrites are declined.

Use --pick to choose further files with an interactive picker filtered to
the configured extension, and --once to exit after selection instead of
watching.`,
		Example: `  txtwatch open notes.txt
  txtwatch open --pick
  txtwatch open a.txt b.txt --output json --show-content
  txtwatch open --once --yes copy/notes.txt --export summary.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.pick, "pick", false, "choose files with an interactive picker")
	f.BoolVarP(&opts.yes, "yes", "y", false, "accept every overwrite without asking")
	f.BoolVar(&opts.no, "no", false, "decline every overwrite without asking")
	f.BoolVar(&opts.once, "once", false, "exit after selecting instead of watching")
	f.BoolVar(&opts.showContent, "show-content", false, "print file content with every update")
	f.StringVarP(&opts.format, "output", "o", output.FormatText, "event output format: text, json, yaml")
	f.StringVar(&opts.export, "export", "", "write a summary of files and changes on exit (.json, .yaml or - for stdout)")

	// Bound into config by name.
	f.Duration("settle-delay", config.DefaultSettleDelay, "wait after a change before re-reading")
	f.Int("retry-attempts", config.DefaultRetryAttempts, "read attempts on a locked file")
	f.Duration("retry-backoff", config.DefaultRetryBackoff, "wait between read attempts")
	f.Duration("rename-window", config.DefaultRenameWindow, "window pairing a rename's old and new names")
	f.String("extension", config.DefaultExtension, "file extension offered by the picker")
	f.Int("max-log-entries", 0, "keep at most this many change records (0 keeps all)")

	return cmd
}

func runOpen(cmd *cobra.Command, args []string, opts *openOptions) error {
	if opts.yes && opts.no {
		return &ExitError{Code: 2, Err: errors.New("--yes and --no are mutually exclusive")}
	}

	if len(args) == 0 && !opts.pick {
		return &ExitError{Code: 2, Err: errors.New("no files given: pass file paths or use --pick")}
	}

	factory, err := output.DefaultRegistry().Encoder(opts.format)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	enc := factory(cmd.OutOrStdout(), output.Options{
		NoColor:     cfg.NoColor,
		ShowContent: opts.showContent,
	})

	loop := dispatch.NewLoop()

	sess, err := session.New(session.Options{
		Dispatcher: loop,
		Reader: fsread.New(
			fsread.WithAttempts(cfg.RetryAttempts),
			fsread.WithBackoff(cfg.RetryBackoff),
			fsread.WithLogger(logger),
		),
		SettleDelay:   cfg.SettleDelay,
		RenameWindow:  cfg.RenameWindow,
		MaxLogEntries: cfg.MaxLogEntries,
		Logger:        logger,
	})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	detach := attachPrinter(sess, enc, logger)
	defer detach()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)

	go func() {
		// The loop outlives sigCtx and is closed by the deferred shutdown.
		loopDone <- loop.Run(context.WithoutCancel(ctx))
	}()

	defer func() {
		sess.Close()

		// Tasks run in order, so this returns once every publish posted
		// before Close has been printed.
		_ = loop.Invoke(context.WithoutCancel(ctx), func() {})

		loop.Close()
		<-loopDone
	}()

	confirm := newConfirmFunc(opts, cmd, logger)

	sel := &selector{sess: sess, loop: loop, confirm: confirm, logger: logger, errOut: cmd.ErrOrStderr()}

	for _, path := range args {
		if err := sel.open(sigCtx, path); err != nil {
			return err
		}
	}

	if opts.pick {
		if err := pickLoop(sigCtx, sel, cfg.Extension, cmd); err != nil {
			return err
		}
	}

	if sess.Registry().Len() == 0 {
		return &ExitError{Code: 1, Err: errors.New("no file could be opened")}
	}

	if !opts.once {
		logger.Info("watching for changes, press Ctrl+C to stop",
			slog.String("dir", sess.Watcher().Dir()),
		)
		<-sigCtx.Done()
		logger.Debug("shutting down")
	}

	if opts.export != "" {
		if err := exportSummary(sess, loop, opts.export, cmd.OutOrStdout(), logger); err != nil {
			return err
		}
	}

	if opts.once && sel.failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d file(s) could not be opened", sel.failed)}
	}

	return nil
}

// attachPrinter streams change records and file snapshots to enc. All
// notifications arrive on the foreground loop, so enc has a single writer.
func attachPrinter(sess *session.Session, enc output.Encoder, logger *slog.Logger) func() {
	report := func(err error) {
		if err != nil {
			logger.Warn("writing output failed", slog.String("error", err.Error()))
		}
	}

	unsubs := []func(){
		sess.Log().Subscribe(func(rec changelog.Record) {
			report(enc.EncodeRecord(rec))
		}),
	}

	unsubs = append(unsubs, sess.Registry().SubscribeAdded(func(f *registry.TrackedFile) {
		report(enc.EncodeSnapshot(f.Snapshot()))

		unsubs = append(unsubs, f.Subscribe(func(snap registry.FileSnapshot) {
			report(enc.EncodeSnapshot(snap))
		}))
	}))

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// exportSummary writes the tracked files and change log to path. A path of
// "-" writes YAML to stdout. It runs on the loop, which also owns stdout.
func exportSummary(
	sess *session.Session,
	loop *dispatch.Loop,
	path string,
	stdout io.Writer,
	logger *slog.Logger,
) error {
	var (
		w      output.Writer
		format string
	)

	if path == "-" {
		w, format = output.NewStdoutWriter(stdout), output.FormatYAML
	} else {
		w, format = output.NewFileWriter(path, output.WithLogger(logger)), output.SummaryFormat(path)
	}

	var writeErr error

	err := loop.Invoke(context.Background(), func() {
		summary := output.Summary{
			Files:   sess.Registry().Snapshots(),
			Changes: sess.Log().Records(),
		}
		writeErr = output.WriteSummary(w, summary, format)
	})
	if err == nil {
		err = writeErr
	}

	if err != nil {
		return fmt.Errorf("exporting summary: %w", err)
	}

	logger.Info("summary written", slog.String("path", path), slog.String("format", format))

	return nil
}
