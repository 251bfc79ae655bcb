package admin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeTool = `#!/bin/sh
case "$1 $2" in
  "realm get")
    echo "2024-01-01 warning: deprecated option"
    echo '{"id":"r1","name":"gold"}'
    ;;
  "sync status")
    echo "          realm abc (gold)"
    ;;
  "bucket stats")
    echo "nothing structured here"
    ;;
  "bad json")
    echo '{"id": '
    ;;
  "echo args")
    echo "[\"$*\"]"
    ;;
  "sleep now")
    exec sleep 5
    ;;
  "fail conn")
    echo "couldn't init storage provider: could not init rados" >&2
    exit 5
    ;;
  "fail realm")
    echo "ERROR: no realm found" >&2
    exit 2
    ;;
  "fail other")
    echo "boom" >&2
    exit 3
    ;;
esac
`

func newFakeExecutor(t *testing.T) *Executor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "radosgw-admin")
	require.NoError(t, os.WriteFile(path, []byte(fakeTool), 0o755))
	return NewExecutor(path, logr.Discard())
}

func TestExecutorRun(t *testing.T) {
	e := newFakeExecutor(t)
	ctx := context.Background()

	t.Run("json mode skips preamble", func(t *testing.T) {
		out, err := e.Run(ctx, []string{"realm", "get"}, ModeJSON, 5*time.Second)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"r1","name":"gold"}`, string(out.JSON))
		assert.Greater(t, out.Skipped, 0)
		assert.Equal(t, "--format=json", out.Args[len(out.Args)-1])
	})

	t.Run("json mode appends format flag", func(t *testing.T) {
		out, err := e.Run(ctx, []string{"echo", "args"}, ModeJSON, 5*time.Second)
		require.NoError(t, err)
		assert.JSONEq(t, `["echo args --format=json"]`, string(out.JSON))
	})

	t.Run("text mode never appends format flag", func(t *testing.T) {
		out, err := e.Run(ctx, []string{"echo", "args"}, ModeText, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, `["echo args"]`, out.Text)
		assert.Nil(t, out.JSON)
	})

	t.Run("text mode returns trimmed stdout", func(t *testing.T) {
		out, err := e.Run(ctx, []string{"sync", "status"}, ModeText, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "realm abc (gold)", out.Text)
	})

	tests := []struct {
		name     string
		args     []string
		mode     Mode
		wantKind ErrorKind
		wantCode int
	}{
		{"no bracket", []string{"bucket", "stats"}, ModeJSON, KindDecode, 0},
		{"malformed document", []string{"bad", "json"}, ModeJSON, KindDecode, 0},
		{"connectivity failure", []string{"fail", "conn"}, ModeText, KindUnreachable, 5},
		{"no realm", []string{"fail", "realm"}, ModeJSON, KindNoRealm, 2},
		{"other exit", []string{"fail", "other"}, ModeText, KindExit, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Run(ctx, tt.args, tt.mode, 5*time.Second)
			assert.Nil(t, out)

			var ce *CommandError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantKind, ce.Kind)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, ce.ExitCode)
			}
		})
	}

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		_, err := e.Run(ctx, []string{"sleep", "now"}, ModeText, 200*time.Millisecond)
		assert.Equal(t, KindTimeout, KindOf(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Run(cctx, []string{"realm", "get"}, ModeJSON, 5*time.Second)
		assert.Equal(t, KindCanceled, KindOf(err))
	})
}

func TestExecutorBinaryNotFound(t *testing.T) {
	e := NewExecutor("rgwsync-no-such-admin-tool", logr.Discard())

	_, err := e.Run(context.Background(), []string{"realm", "get"}, ModeJSON, time.Second)

	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindBinaryNotFound, ce.Kind)
	assert.True(t, ce.Fatal())
	assert.Equal(t, "rgwsync-no-such-admin-tool", ce.Args[0])
}

func TestNewExecutorDefaultBinary(t *testing.T) {
	assert.Equal(t, DefaultBinary, NewExecutor("", logr.Discard()).Binary())
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		skipped int
		wantErr error
	}{
		{"object", `{"a":1}`, `{"a":1}`, 0, nil},
		{"array", ` [1,2] `, `[1,2]`, 0, nil},
		{"preamble", "warn: x\n{\"a\":1}", `{"a":1}`, 8, nil},
		{"array before object", "x [{\"a\":1}]", `[{"a":1}]`, 2, nil},
		{"empty", "", "", 0, ErrNoStructuredData},
		{"plain text", "realm abc (gold)", "", 0, ErrNoStructuredData},
		{"truncated", `{"a":`, "", 0, ErrMalformedData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, skipped, err := ExtractJSON(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(doc))
			assert.Equal(t, tt.skipped, skipped)
		})
	}
}

func TestClassifyStderr(t *testing.T) {
	assert.Equal(t, KindUnreachable, classifyStderr("failed: Error connecting to cluster"))
	assert.Equal(t, KindUnreachable, classifyStderr("could not init rados"))
	assert.Equal(t, KindNoRealm, classifyStderr("ERROR: No realm found"))
	assert.Equal(t, KindExit, classifyStderr("permission denied"))
	assert.Equal(t, KindExit, classifyStderr(""))
}

func TestCommandErrorMessage(t *testing.T) {
	withStderr := &CommandError{Kind: KindExit, Args: []string{"radosgw-admin", "x"}, Stderr: "boom", ExitCode: 3}
	assert.Equal(t, "boom", withStderr.Message())
	assert.Equal(t, "radosgw-admin x: exit (rc=3): boom", withStderr.Error())

	withErr := &CommandError{Kind: KindTimeout, Args: []string{"radosgw-admin"}, Err: context.DeadlineExceeded}
	assert.Equal(t, context.DeadlineExceeded.Error(), withErr.Message())
	assert.False(t, withErr.Fatal())
	assert.False(t, withErr.Degraded())

	assert.True(t, IsDegraded(&CommandError{Kind: KindNoRealm}))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
