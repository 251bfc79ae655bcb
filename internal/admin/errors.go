package admin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAccess marks conditions under which the collection pipeline must not
// start: the admin tool is missing or the cluster cannot be reached.
var ErrFatalAccess = errors.New("admin tool cannot access the cluster")

// ErrorKind classifies a failed command.
type ErrorKind string

const (
	// KindBinaryNotFound means the admin tool is not installed or not on PATH.
	KindBinaryNotFound ErrorKind = "binary_not_found"
	// KindTimeout means the command outlived its timeout and was killed.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller's context was canceled mid-command.
	KindCanceled ErrorKind = "canceled"
	// KindUnreachable means the tool ran but could not connect to the cluster.
	KindUnreachable ErrorKind = "unreachable"
	// KindNoRealm means the cluster is reachable but has no realm configured.
	KindNoRealm ErrorKind = "no_realm"
	// KindExit is any other non-zero exit.
	KindExit ErrorKind = "exit"
	// KindDecode means structured output was requested but none could be decoded.
	KindDecode ErrorKind = "decode"
)

// CommandError is the error half of every Run result. Callers branch on Kind
// rather than on error strings.
type CommandError struct {
	Err      error
	Kind     ErrorKind
	Stderr   string
	Stdout   string
	Args     []string
	ExitCode int
}

func (e *CommandError) Error() string {
	cmd := strings.Join(e.Args, " ")
	switch e.Kind {
	case KindExit, KindUnreachable, KindNoRealm:
		return fmt.Sprintf("%s: %s (rc=%d): %s", cmd, e.Kind, e.ExitCode, e.Stderr)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", cmd, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", cmd, e.Kind)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }

// Fatal reports whether the failure means the tool cannot work on this host at all.
func (e *CommandError) Fatal() bool {
	return e.Kind == KindBinaryNotFound || e.Kind == KindUnreachable
}

// Degraded reports the "no realm configured" condition.
func (e *CommandError) Degraded() bool {
	return e.Kind == KindNoRealm
}

// Message returns the most useful human-readable detail: stderr when the tool
// produced one, otherwise the wrapped error.
func (e *CommandError) Message() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// KindOf extracts the ErrorKind from err, or "" when err is not a CommandError.
func KindOf(err error) ErrorKind {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsDegraded reports whether err is the non-fatal "no realm" condition.
func IsDegraded(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Degraded()
}

// classifyStderr maps a non-zero exit's stderr to a kind.
func classifyStderr(stderr string) ErrorKind {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "could not init"), strings.Contains(lower, "error connecting"):
		return KindUnreachable
	case strings.Contains(lower, "no realm"):
		return KindNoRealm
	default:
		return KindExit
	}
}
