package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// Access is the outcome of a successful pre-flight probe.
type Access struct {
	// Degraded is set when the cluster answered but has no realm configured.
	Degraded bool
	// Warning carries the degraded-condition detail for the operator.
	Warning string
}

// Validate probes the cluster with "realm get" before anything else starts.
//
// A missing binary, an unreachable cluster, a timeout or any other non-zero
// exit returns an error wrapping ErrFatalAccess. The "no realm" condition is
// logged and reported through Access.Degraded. Undecodable output still
// proves the tool ran and is accepted.
func Validate(ctx context.Context, r Runner, log logr.Logger) (Access, error) {
	log = log.WithName("preflight")

	_, err := r.Run(ctx, []string{"realm", "get"}, ModeJSON, ProbeTimeout)
	if err == nil {
		log.Info("admin tool can access the cluster")
		return Access{}, nil
	}

	var ce *CommandError
	if !errors.As(err, &ce) {
		return Access{}, fmt.Errorf("%w: %w", ErrFatalAccess, err)
	}
	switch ce.Kind {
	case KindNoRealm:
		log.Info("no realm configured, continuing with reduced topology", "detail", ce.Message())
		return Access{Degraded: true, Warning: ce.Message()}, nil
	case KindDecode:
		log.V(1).Info("realm get output not decodable, tool is reachable", "error", err.Error())
		return Access{}, nil
	case KindCanceled:
		return Access{}, err
	default:
		return Access{}, fmt.Errorf("%w: %w", ErrFatalAccess, err)
	}
}
