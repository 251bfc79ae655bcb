package admin

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// DefaultBinary is the admin tool invoked when no override is configured.
const DefaultBinary = "radosgw-admin"

// Default timeouts for the different command weights.
const (
	ProbeTimeout  = 15 * time.Second
	StatusTimeout = 30 * time.Second
	StatsTimeout  = 60 * time.Second
)

// Mode selects how command output is returned.
type Mode int

const (
	// ModeJSON appends --format=json and decodes the structured document.
	ModeJSON Mode = iota
	// ModeText returns trimmed stdout verbatim.
	ModeText
)

func (m Mode) String() string {
	if m == ModeText {
		return "text"
	}
	return "json"
}

// Output is the success half of a Run result.
type Output struct {
	// Args is the full argv including the binary.
	Args []string
	// Text is trimmed stdout.
	Text string
	// JSON holds the decoded document in ModeJSON, nil in ModeText.
	JSON []byte
	// Skipped is the number of preamble bytes dropped before JSON.
	Skipped int
}

// Runner runs one admin command. Every failure is returned as a *CommandError.
type Runner interface {
	Run(ctx context.Context, args []string, mode Mode, timeout time.Duration) (*Output, error)
}

// Executor runs the admin tool as a subprocess.
type Executor struct {
	log    logr.Logger
	binary string
}

// NewExecutor creates an Executor for binary, or DefaultBinary when empty.
func NewExecutor(binary string, log logr.Logger) *Executor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Executor{binary: binary, log: log.WithName("admin")}
}

// Binary returns the configured admin tool name or path.
func (e *Executor) Binary() string {
	return e.binary
}

// Run executes the admin tool with args and a per-command timeout.
//
// In ModeJSON the --format=json flag is appended and stdout is scanned for the
// first '{' or '[' so that warnings printed ahead of the document are skipped.
// ModeText never receives the flag.
func (e *Executor) Run(ctx context.Context, args []string, mode Mode, timeout time.Duration) (*Output, error) {
	argv := append([]string(nil), args...)
	if mode == ModeJSON {
		argv = append(argv, "--format=json")
	}
	full := append([]string{e.binary}, argv...)

	path, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, &CommandError{Kind: KindBinaryNotFound, Args: full, Err: err, ExitCode: -1}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, argv...)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	text := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())
	e.log.V(1).Info("admin command finished", "args", full, "mode", mode.String(),
		"elapsed", time.Since(started).String(), "stdoutBytes", stdout.Len(), "error", runErr)

	if runErr != nil {
		ce := &CommandError{Args: full, Err: runErr, Stdout: text, Stderr: errText, ExitCode: -1}
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			ce.Kind = KindTimeout
			ce.Err = context.DeadlineExceeded
		case ctx.Err() != nil:
			ce.Kind = KindCanceled
			ce.Err = ctx.Err()
		case errors.As(runErr, &exitErr):
			ce.ExitCode = exitErr.ExitCode()
			ce.Kind = classifyStderr(errText)
		default:
			ce.Kind = KindExit
		}
		return nil, ce
	}

	out := &Output{Args: full, Text: text}
	if mode == ModeText {
		return out, nil
	}

	doc, skipped, err := ExtractJSON(text)
	if err != nil {
		return nil, &CommandError{Kind: KindDecode, Args: full, Err: err, Stdout: text, Stderr: errText}
	}
	if skipped > 0 {
		e.log.V(1).Info("skipped preamble before JSON", "args", full, "bytes", skipped)
	}
	out.JSON = doc
	out.Skipped = skipped
	return out, nil
}
