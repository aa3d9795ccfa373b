// Package instrumentation provides OpenTelemetry (OTEL) instrumentation
// for the auth gateway.
//
// It exposes metrics and traces for the authorization flow, session
// lifecycle, backend proxy calls, and verifier storage. When disabled
// (the default zero Config), no-op providers are used and recording has
// zero overhead.
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "clonex-authd",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
// HTTP layer:
//   - auth.http.requests.total{method, endpoint, status}
//   - auth.http.request.duration{endpoint}
//
// Authorization flow:
//   - auth.flow.started
//   - auth.callback.processed{outcome}
//   - auth.code.exchanged{outcome}
//   - auth.session.refreshed{rotated}
//   - auth.session.revoked
//   - auth.session.expired{endpoint}
//
// Security:
//   - auth.rate_limit.exceeded
//   - auth.audit.events.total{event_type}
//
// Storage:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.pending_requests (gauge)
//
// Provider and backend:
//   - provider.api.calls.total{provider, operation, status}
//   - provider.api.duration{provider, operation}
//   - backend.api.calls.total{endpoint, status}
//   - backend.api.duration{endpoint}
//
// Never record actual token values, verifiers, or authorization codes in
// traces or metrics. Only metadata such as outcomes, durations, and
// endpoint names is safe to attach.
package instrumentation
