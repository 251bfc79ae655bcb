package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/admin/admintest"
)

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		r := admintest.New().On("realm get", `{"id":"r1","name":"gold"}`)

		access, err := admin.Validate(ctx, r, logr.Discard())
		require.NoError(t, err)
		assert.False(t, access.Degraded)
		mode, _ := r.ModeOf("realm get")
		assert.Equal(t, admin.ModeJSON, mode)
	})

	t.Run("no realm is degraded not fatal", func(t *testing.T) {
		r := admintest.New().Fail("realm get", admin.KindNoRealm, "ERROR: no realm configured")

		access, err := admin.Validate(ctx, r, logr.Discard())
		require.NoError(t, err)
		assert.True(t, access.Degraded)
		assert.Contains(t, access.Warning, "no realm")
	})

	t.Run("undecodable output is accepted", func(t *testing.T) {
		r := admintest.New().On("realm get", "realm output without json")

		_, err := admin.Validate(ctx, r, logr.Discard())
		assert.NoError(t, err)
	})

	for _, kind := range []admin.ErrorKind{admin.KindBinaryNotFound, admin.KindUnreachable, admin.KindTimeout, admin.KindExit} {
		t.Run("fatal "+string(kind), func(t *testing.T) {
			r := admintest.New().Fail("realm get", kind, "")

			_, err := admin.Validate(ctx, r, logr.Discard())
			assert.ErrorIs(t, err, admin.ErrFatalAccess)
			assert.Equal(t, kind, admin.KindOf(err))
		})
	}

	t.Run("canceled is not fatal access", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := admin.Validate(cctx, admintest.New(), logr.Discard())
		require.Error(t, err)
		assert.False(t, errors.Is(err, admin.ErrFatalAccess))
	})
}
