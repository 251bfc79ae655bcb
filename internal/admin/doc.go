// Package admin runs the cluster's administrative command-line tool and turns
// its output into a uniform result.
//
// Every command goes through a Runner. The production Executor starts the
// tool as a subprocess with a timeout, optionally asks it for JSON and skips
// any preamble text printed ahead of the document. Failures never escape as
// panics; they come back as *CommandError values carrying an ErrorKind so
// that callers can tell a missing binary or an unreachable cluster (fatal at
// startup) from a missing realm (degraded) or an ordinary per-command failure
// (no data for this item this cycle).
//
// Typical use:
//
//	exec := admin.NewExecutor("", log)
//	if _, err := admin.Validate(ctx, exec, log); errors.Is(err, admin.ErrFatalAccess) {
//		// refuse to start the pipeline
//	}
//	out, err := exec.Run(ctx, []string{"bucket", "stats"}, admin.ModeJSON, admin.StatsTimeout)
package admin
