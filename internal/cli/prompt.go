package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hupe1980/txtwatch/internal/dispatch"
	"github.com/hupe1980/txtwatch/internal/registry"
	"github.com/hupe1980/txtwatch/internal/session"
)

// selector runs selections on the foreground loop and counts failures.
type selector struct {
	sess    *session.Session
	loop    *dispatch.Loop
	confirm registry.ConfirmFunc
	logger  *slog.Logger
	errOut  io.Writer
	failed  int
}

// open selects path. An unreadable file is reported and counted but does
// not end the session; an interrupt ends the selection quietly.
func (s *selector) open(ctx context.Context, path string) error {
	var (
		file    *registry.TrackedFile
		outcome registry.Outcome
		selErr  error
	)

	err := s.loop.Invoke(ctx, func() {
		file, outcome, selErr = s.sess.Select(path, s.confirm)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("selecting %q: %w", path, err)
	}

	if selErr != nil {
		s.failed++
		fmt.Fprintf(s.errOut, "txtwatch: %v\n", selErr)

		return nil
	}

	switch outcome {
	case registry.Unchanged:
		s.logger.Info("file unchanged", slog.String("file", file.DisplayName()), slog.String("version", file.Version()))
	case registry.Declined:
		s.logger.Info("overwrite declined, keeping tracked copy",
			slog.String("file", file.DisplayName()),
			slog.String("version", file.Version()),
		)
	}

	return nil
}

// newConfirmFunc answers overwrite questions from --yes/--no, with a huh
// prompt on a terminal, or declines when nobody can be asked.
func newConfirmFunc(opts *openOptions, cmd *cobra.Command, logger *slog.Logger) registry.ConfirmFunc {
	switch {
	case opts.yes:
		return func(string) bool { return true }
	case opts.no:
		return func(string) bool { return false }
	}

	in := cmd.InOrStdin()
	if !isTerminal(in) {
		return func(question string) bool {
			logger.Warn("cannot ask without a terminal, declining", slog.String("question", question))
			return false
		}
	}

	out := cmd.ErrOrStderr()

	return func(question string) bool {
		var ok bool

		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Overwrite").
				Negative("Keep").
				Value(&ok),
		)).WithInput(in).WithOutput(out).Run()
		if err != nil {
			logger.Debug("confirmation aborted", slog.String("error", err.Error()))
			return false
		}

		return ok
	}
}

// pickLoop offers the file picker until the user aborts, selecting each
// chosen file. The picker starts in the working directory and then follows
// the directory of the last pick.
func pickLoop(ctx context.Context, sel *selector, ext string, cmd *cobra.Command) error {
	in := cmd.InOrStdin()
	if !isTerminal(in) {
		return &ExitError{Code: 2, Err: errors.New("--pick needs an interactive terminal")}
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	for ctx.Err() == nil {
		var path string

		picker := huh.NewFilePicker().
			Title("Open a file").
			Description(fmt.Sprintf("Showing %s files. Esc to stop picking.", ext)).
			CurrentDirectory(dir).
			AllowedTypes([]string{ext}).
			FileAllowed(true).
			DirAllowed(false).
			Picking(true).
			Height(15).
			Value(&path)

		err := huh.NewForm(huh.NewGroup(picker)).
			WithInput(in).
			WithOutput(cmd.ErrOrStderr()).
			RunWithContext(ctx)

		switch {
		case errors.Is(err, huh.ErrUserAborted), ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("picking file: %w", err)
		case path == "":
			return nil
		}

		dir = filepath.Dir(path)

		if err := sel.open(ctx, path); err != nil {
			return err
		}
	}

	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
