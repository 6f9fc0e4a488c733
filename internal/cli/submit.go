package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/lavignes/roolz/internal/session"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Addr string
}

// SubmitResult is the outcome of submitting one rule source.
type SubmitResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Package string `json:"package,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitReport is the JSON payload for a submit run.
type SubmitReport struct {
	Session string         `json:"session"`
	Results []SubmitResult `json:"results"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <path>...",
		Short: "Submit rule sources to a running server over a session",
		Long: `Open a session against a running roolz server and submit rule source
files (or directories of them) over it, printing each result as it
arrives. Submissions are named after their file.

Exit codes:
  0  all submissions accepted
  1  at least one submission was rejected
  2  a path could not be read or the server could not be reached

Example:
  roolz submit cart.rlz
  roolz submit --addr 10.0.0.5:1234 ./rules --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:1234", "server address")

	return cmd
}

func runSubmit(opts *SubmitOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	files, err := CollectRuleFiles(paths)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot collect rule sources", err)
	}

	url := "ws://" + opts.Addr + session.Path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot connect to %s", opts.Addr), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var hello session.Hello
	if err := conn.ReadJSON(&hello); err != nil {
		return WrapExitError(ExitCommandError, "no session greeting", err)
	}
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", hello.Session)
	}

	report := SubmitReport{Session: hello.Session}
	failures := 0
	for _, file := range files {
		result, err := submitFile(conn, file)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "session failed", err)
		}
		if !result.OK {
			failures++
		}
		report.Results = append(report.Results, result)

		if opts.Format != "json" {
			if result.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (pkg %s)\n", result.Name, result.Package)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s\n", result.Name, result.Error)
			}
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d submission(s), %d rejection(s)\n", len(report.Results), failures)
	}

	if failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d submission(s) rejected", failures))
	}
	return nil
}

// submitFile sends one source over the session and waits for its result
// frame. The submission is named after the file so results correlate.
func submitFile(conn *websocket.Conn, path string) (SubmitResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SubmitResult{}, err
	}

	name := filepath.Base(path)
	req := session.Request{Type: session.TypeSubmit, Name: name, Source: string(data)}
	if err := conn.WriteJSON(req); err != nil {
		return SubmitResult{}, fmt.Errorf("sending %s: %w", name, err)
	}

	var result session.Result
	if err := conn.ReadJSON(&result); err != nil {
		return SubmitResult{}, fmt.Errorf("awaiting result for %s: %w", name, err)
	}

	out := SubmitResult{Name: result.Name, OK: result.OK, Package: result.Package}
	if result.Error != nil {
		out.Error = fmt.Sprintf("%d:%d: %s: %s",
			result.Error.Line, result.Error.Col, result.Error.Kind, result.Error.Message)
	}
	return out, nil
}
