// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and the
// per-engine token/turn usage tracker the concurrency model requires.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint.
//
// Unlike a typical package-level metrics singleton, [Metrics] carries a
// [UsageTracker] whose counts must stay scoped to one running engine: two
// engines processing turns concurrently must never see each other's token
// totals. Every call site therefore constructs its own [Metrics] via
// [NewMetrics] — there is deliberately no package-level default instance.
package observe

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all recall metrics.
const meterName = "github.com/halcyon-ai/recall"

// Metrics holds all OpenTelemetry metric instruments for one engine
// instance. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation — but the instruments themselves
// are process-wide exporters; per-engine isolation for token/turn counts is
// the job of the embedded [UsageTracker], not the OTel instruments.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ClassifyDuration tracks the Layer 1 classifier's per-sentence chat
	// call latency.
	ClassifyDuration metric.Float64Histogram

	// PlanDuration tracks the Layer 1.5 planner's chat call latency.
	PlanDuration metric.Float64Histogram

	// RetrieveAgentTurnDuration tracks one retrieve-agent (L2-R) tool-loop
	// turn's latency.
	RetrieveAgentTurnDuration metric.Float64Histogram

	// CuratorCallDuration tracks one curator section's chat call latency.
	CuratorCallDuration metric.Float64Histogram

	// StoreAgentTurnDuration tracks one store-agent (L2-S) tool-loop turn's
	// latency.
	StoreAgentTurnDuration metric.Float64Histogram

	// ReconcileDuration tracks one reconciliation chat call's latency.
	ReconcileDuration metric.Float64Histogram

	// ProviderDuration tracks raw chat/embeddings provider call latency.
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts agent-loop tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// SafetyNetFires counts safety-net candidate injections. Use with
	// attribute: attribute.String("net", "top_instructions"|"broad_search"|"global_scope").
	SafetyNetFires metric.Int64Counter

	// ForceStoreWrites counts items the force-store coverage net wrote
	// directly because the store agent never covered them.
	ForceStoreWrites metric.Int64Counter

	// ReconcileVerdicts counts reconciler verdicts. Use with attribute:
	//   attribute.String("verdict", "no_conflict"|"supersedes"|"contradiction").
	ReconcileVerdicts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveEngines tracks the number of engine instances currently
	// processing a turn.
	ActiveEngines metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// Usage is this Metrics instance's private token/turn usage tracker.
	// It is never shared across engines: [NewMetrics] always allocates a
	// fresh one.
	Usage *UsageTracker
}

// latencyBuckets defines histogram bucket boundaries (in seconds), tuned
// for chat-call-bound pipeline stages rather than sub-10ms operations.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct scoped to one
// engine instance, using the given [metric.MeterProvider]. Returns an error
// if any instrument creation fails. Callers MUST NOT share the result across
// concurrently running engines — construct one per [Engine] instead of
// reaching for a package-level singleton.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{Usage: newUsageTracker()}

	// Histograms.
	if met.ClassifyDuration, err = m.Float64Histogram("recall.classify.duration",
		metric.WithDescription("Latency of one classifier sentence chat call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlanDuration, err = m.Float64Histogram("recall.plan.duration",
		metric.WithDescription("Latency of the search-planning chat call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrieveAgentTurnDuration, err = m.Float64Histogram("recall.retrieve_agent.turn_duration",
		metric.WithDescription("Latency of one retrieve-agent tool-loop turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CuratorCallDuration, err = m.Float64Histogram("recall.curator.call_duration",
		metric.WithDescription("Latency of one curator section chat call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreAgentTurnDuration, err = m.Float64Histogram("recall.store_agent.turn_duration",
		metric.WithDescription("Latency of one store-agent tool-loop turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReconcileDuration, err = m.Float64Histogram("recall.reconcile.duration",
		metric.WithDescription("Latency of one reconciliation chat call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("recall.provider.duration",
		metric.WithDescription("Latency of raw chat/embeddings provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("recall.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("recall.tool.calls",
		metric.WithDescription("Total agent-loop tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.SafetyNetFires, err = m.Int64Counter("recall.safety_net.fires",
		metric.WithDescription("Total safety-net candidate injections by net name."),
	); err != nil {
		return nil, err
	}
	if met.ForceStoreWrites, err = m.Int64Counter("recall.force_store.writes",
		metric.WithDescription("Total items written by the force-store coverage net."),
	); err != nil {
		return nil, err
	}
	if met.ReconcileVerdicts, err = m.Int64Counter("recall.reconcile.verdicts",
		metric.WithDescription("Total reconciler verdicts by verdict kind."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("recall.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveEngines, err = m.Int64UpDownCounter("recall.active_engines",
		metric.WithDescription("Number of engine instances currently processing a turn."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("recall.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordSafetyNetFire is a convenience method that records a safety-net
// firing counter increment.
func (m *Metrics) RecordSafetyNetFire(ctx context.Context, net string) {
	m.SafetyNetFires.Add(ctx, 1,
		metric.WithAttributes(attribute.String("net", net)),
	)
}

// RecordReconcileVerdict is a convenience method that records a reconciler
// verdict counter increment.
func (m *Metrics) RecordReconcileVerdict(ctx context.Context, verdict string) {
	m.ReconcileVerdicts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("verdict", verdict)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// UsageTracker accumulates token and tool-loop turn counts for exactly one
// engine's lifetime. It is a plain counter, not an OTel instrument: spec §5
// requires these totals to be isolated per engine instance rather than
// aggregated process-wide, which rules out a package-level OTel counter
// (those are inherently process-wide across every meter reader).
type UsageTracker struct {
	mu           sync.Mutex
	promptToks   int64
	completeToks int64
	turns        atomic.Int64
}

func newUsageTracker() *UsageTracker {
	return &UsageTracker{}
}

// AddTokens records prompt and completion token counts from one provider
// call.
func (u *UsageTracker) AddTokens(prompt, completion int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.promptToks += int64(prompt)
	u.completeToks += int64(completion)
}

// AddTurn records one agent-loop turn (retrieve or store side).
func (u *UsageTracker) AddTurn() {
	u.turns.Add(1)
}

// Snapshot returns the tracker's current totals.
func (u *UsageTracker) Snapshot() (promptTokens, completionTokens int64, turns int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.promptToks, u.completeToks, u.turns.Load()
}
