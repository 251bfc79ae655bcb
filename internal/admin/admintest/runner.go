// Package admintest provides a scripted admin.Runner for tests.
package admintest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/rgwsync/internal/admin"
)

type response struct {
	err  error
	text string
}

// Runner answers admin commands from a table keyed by the space-joined
// arguments, without the --format=json flag. Unknown commands fail with
// KindExit.
type Runner struct {
	responses map[string]response
	calls     []string
	modes     map[string]admin.Mode
	mu        sync.Mutex
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{
		responses: make(map[string]response),
		modes:     make(map[string]admin.Mode),
	}
}

// On scripts stdout for args.
func (r *Runner) On(args, stdout string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[args] = response{text: stdout}
	return r
}

// Fail scripts a classified failure for args.
func (r *Runner) Fail(args string, kind admin.ErrorKind, stderr string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[args] = response{err: &admin.CommandError{
		Kind:     kind,
		Args:     append([]string{admin.DefaultBinary}, strings.Fields(args)...),
		Stderr:   stderr,
		ExitCode: 1,
	}}
	return r
}

// Run implements admin.Runner.
func (r *Runner) Run(ctx context.Context, args []string, mode admin.Mode, _ time.Duration) (*admin.Output, error) {
	key := strings.Join(args, " ")
	full := append([]string{admin.DefaultBinary}, args...)
	if mode == admin.ModeJSON {
		full = append(full, "--format=json")
	}

	r.mu.Lock()
	r.calls = append(r.calls, key)
	r.modes[key] = mode
	resp, ok := r.responses[key]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &admin.CommandError{Kind: admin.KindCanceled, Args: full, Err: err, ExitCode: -1}
	}
	if !ok {
		return nil, &admin.CommandError{Kind: admin.KindExit, Args: full, Stderr: "no scripted response", ExitCode: 1}
	}
	if resp.err != nil {
		return nil, resp.err
	}

	out := &admin.Output{Args: full, Text: strings.TrimSpace(resp.text)}
	if mode == admin.ModeText {
		return out, nil
	}
	doc, skipped, err := admin.ExtractJSON(out.Text)
	if err != nil {
		return nil, &admin.CommandError{Kind: admin.KindDecode, Args: full, Err: err, Stdout: out.Text}
	}
	out.JSON = doc
	out.Skipped = skipped
	return out, nil
}

// Calls returns the keys of every command run so far, in order.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Called reports whether args was run at least once.
func (r *Runner) Called(args string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == args {
			return true
		}
	}
	return false
}

// ModeOf returns the mode args was last run with.
func (r *Runner) ModeOf(args string) (admin.Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modes[args]
	return m, ok
}
