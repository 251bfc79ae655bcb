// Package cluster defines the HTTP contract between the primary monitor and
// the agents running in secondary zones, and a small JSON client for it.
//
// # Overview
//
// Agents never share storage with the monitor. Each cycle an agent packages
// what it collected into a model.ZoneAgentPayload and POSTs it to PushPath on
// the monitor; before its first cycle it checks HealthPath.
//
//	┌──────────────┐  POST /api/zone-agent/push  ┌──────────────┐
//	│ zone agent   │ ──────────────────────────▶ │   monitor    │
//	│ (secondary)  │ ◀────────────────────────── │  (primary)   │
//	└──────────────┘       PushResponse          └──────────────┘
//
// # Communication Protocol
//
// All messages are JSON. A non-2xx reply carries an ErrorResponse body and is
// surfaced by the client as *HTTPError with at most 300 bytes of the body.
// Each push carries an X-Request-ID header so both sides can correlate their
// logs.
//
// # Failure Handling
//
// The client does not retry. A failed push is lost; the agent sends a fresh
// payload on its next cycle.
//
// # Usage Example
//
//	client := cluster.NewClient("http://primary:5000", 15*time.Second)
//	resp, err := client.Push(ctx, payload, uuid.NewString())
//	var httpErr *cluster.HTTPError
//	if errors.As(err, &httpErr) {
//	    log.Info("push rejected", "status", httpErr.Status, "body", httpErr.Body)
//	}
package cluster
