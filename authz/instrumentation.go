package authz

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qtdata/influxdb/internal/clock"
)

// DurationMetric is the histogram family recording the latency of
// permissions checks, faceted by a "result" label (success or error).
const DurationMetric = "authz_permissions_duration"

// InstrumentedAuthorizer is an instrumentation decorator over an [Authorizer]
// implementation.
//
// The wrapper captures the latency distribution of the decorated
// Permissions call, broken down by success/error result. The inner result is
// passed through unmodified.
type InstrumentedAuthorizer struct {
	inner Authorizer
	clock clock.Clock

	// Permissions-check duration distribution for successes.
	durationSuccess prometheus.Observer
	// Permissions-check duration distribution for errors.
	durationError prometheus.Observer
}

var _ Authorizer = (*InstrumentedAuthorizer)(nil)

// NewInstrumentedAuthorizer registers the [DurationMetric] family with reg
// and wraps inner with per-result latency recording.
//
// Registration happens exactly once, at construction; registering a second
// decorator with the same Registerer returns the registry's duplicate error.
func NewInstrumentedAuthorizer(reg prometheus.Registerer, inner Authorizer) (*InstrumentedAuthorizer, error) {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    DurationMetric,
		Help:    "Duration of authz permissions checks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	if err := reg.Register(histogram); err != nil {
		return nil, fmt.Errorf("register %s: %w", DurationMetric, err)
	}

	return &InstrumentedAuthorizer{
		inner:           inner,
		clock:           clock.System{},
		durationSuccess: histogram.WithLabelValues("success"),
		durationError:   histogram.WithLabelValues("error"),
	}, nil
}

// Permissions forwards the check to the wrapped [Authorizer] and records its
// wall-clock duration into exactly one of the two result histograms.
//
// A non-monotonic clock reading (end before start) is unmeasurable; the
// observation is skipped rather than recorded as zero or negative.
func (a *InstrumentedAuthorizer) Permissions(ctx context.Context, token []byte, requested []Permission) ([]Permission, error) {
	start := a.clock.Now()
	granted, err := a.inner.Permissions(ctx, token, requested)

	if delta := a.clock.Now().Sub(start); delta >= 0 {
		if err != nil {
			a.durationError.Observe(delta.Seconds())
		} else {
			a.durationSuccess.Observe(delta.Seconds())
		}
	}

	return granted, err
}
