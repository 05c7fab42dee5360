// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "golang.org/x/exp/surface"

// metrics holds the allocator's instruments.
type metrics struct {
	allocations  metric.Int64Counter
	releases     metric.Int64Counter
	live         metric.Int64UpDownCounter
	lockFailures metric.Int64Counter
	blitFailures metric.Int64Counter
}

var (
	ownedAttrs    = metric.WithAttributes(attribute.String("ownership", Owned.String()))
	borrowedAttrs = metric.WithAttributes(attribute.String("ownership", Borrowed.String()))
)

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &metrics{}
	var err, errs error
	m.allocations, err = meter.Int64Counter("surface.allocations",
		metric.WithDescription("Surfaces created or bound to a window."))
	errs = errors.Join(errs, err)
	m.releases, err = meter.Int64Counter("surface.releases",
		metric.WithDescription("Surfaces released."))
	errs = errors.Join(errs, err)
	m.live, err = meter.Int64UpDownCounter("surface.live",
		metric.WithDescription("Surfaces not yet released."))
	errs = errors.Join(errs, err)
	m.lockFailures, err = meter.Int64Counter("surface.lock_failures",
		metric.WithDescription("Failed attempts to lock a surface for pixel access."))
	errs = errors.Join(errs, err)
	m.blitFailures, err = meter.Int64Counter("surface.blit_failures",
		metric.WithDescription("Blits the provider reported as failed."))
	errs = errors.Join(errs, err)
	return m, errs
}

func ownershipAttrs(o Ownership) metric.MeasurementOption {
	if o == Borrowed {
		return borrowedAttrs
	}
	return ownedAttrs
}

func (m *metrics) created(o Ownership) {
	ctx := context.Background()
	m.allocations.Add(ctx, 1, ownershipAttrs(o))
	m.live.Add(ctx, 1, ownershipAttrs(o))
}

func (m *metrics) released(o Ownership) {
	ctx := context.Background()
	m.releases.Add(ctx, 1, ownershipAttrs(o))
	m.live.Add(ctx, -1, ownershipAttrs(o))
}

func (m *metrics) lockFailed() {
	m.lockFailures.Add(context.Background(), 1)
}

func (m *metrics) blitFailed() {
	m.blitFailures.Add(context.Background(), 1)
}
