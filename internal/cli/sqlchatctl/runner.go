// Package sqlchatctl is the terminal client for a running sqlchat API.
package sqlchatctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type settings struct {
	baseURL   string
	sessionID string
	timeout   time.Duration
	noColor   bool
	client    *http.Client
	stdout    io.Writer
	stderr    io.Writer
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	root, s := newRootCommand(defaults)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(s.stderr, "error: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

type usageError struct{ error }

func newRootCommand(defaults Options) (*cobra.Command, *settings) {
	s := &settings{
		stdout: defaults.Stdout,
		stderr: defaults.Stderr,
	}
	if s.stdout == nil {
		s.stdout = io.Discard
	}
	if s.stderr == nil {
		s.stderr = io.Discard
	}

	root := &cobra.Command{
		Use:           "sqlchatctl",
		Short:         "Ask questions about your database from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if s.noColor {
				pterm.DisableStyling()
			} else {
				pterm.EnableStyling()
			}
			s.client = defaults.HTTPClient
			if s.client == nil {
				s.client = &http.Client{Timeout: s.timeout}
			}
			s.baseURL = strings.TrimRight(strings.TrimSpace(s.baseURL), "/")
		},
	}
	root.SetOut(s.stdout)
	root.SetErr(s.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&s.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlchat API base URL")
	flags.StringVar(&s.sessionID, "session", defaults.SessionID, "session id to continue (printed after each ask)")
	flags.DurationVar(&s.timeout, "timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	flags.BoolVar(&s.noColor, "no-color", false, "disable colors and styling")

	root.AddCommand(
		newAskCommand(s),
		newTranscriptCommand(s),
		newSchemaCommand(s),
		newHealthCommand(s),
		newResetCommand(s),
	)
	return root, s
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
