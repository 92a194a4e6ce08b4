// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package telemetry records the operational metrics of the registry with
// OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	gerrors "github.com/tochemey/grayconf/errors"
)

const (
	instrumentationName = "github.com/tochemey/grayconf"

	operationsCounterName = "grayconf.operations"
	durationHistogramName = "grayconf.operation.duration"
	activeGraysName       = "grayconf.gray.active"
)

// Telemetry holds the meter and the instruments of the registry
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
	metrics       *Metrics
}

// Metrics are the instruments recorded by the registry
type Metrics struct {
	// Operations counts calls by operation, datacenter and status code
	Operations metric.Int64Counter
	// Duration records call latencies in milliseconds
	Duration metric.Float64Histogram
	// ActiveGrays tracks the number of live gray transactions
	ActiveGrays metric.Int64UpDownCounter
}

// New creates an instance of Telemetry. The global meter provider is used
// unless one is given.
func New(options ...Option) (*Telemetry, error) {
	telemetry := &Telemetry{
		meterProvider: otel.GetMeterProvider(),
	}

	for _, opt := range options {
		opt.Apply(telemetry)
	}

	telemetry.meter = telemetry.meterProvider.Meter(instrumentationName)

	metrics, err := NewMetrics(telemetry.meter)
	if err != nil {
		return nil, err
	}

	telemetry.metrics = metrics
	return telemetry, nil
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error

	if metrics.Operations, err = meter.Int64Counter(
		operationsCounterName,
		metric.WithDescription("The total number of registry operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operations instrument, %v", err)
	}

	if metrics.Duration, err = meter.Float64Histogram(
		durationHistogramName,
		metric.WithDescription("The latency of registry operations in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration instrument, %v", err)
	}

	if metrics.ActiveGrays, err = meter.Int64UpDownCounter(
		activeGraysName,
		metric.WithDescription("The number of live gray transactions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active gray instrument, %v", err)
	}

	return metrics, nil
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Meter returns the meter
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// Metrics returns the instruments
func (t *Telemetry) Metrics() *Metrics {
	return t.metrics
}

// RecordOperation records one call of op against datacenter that started
// at start and ended with err.
func (t *Telemetry) RecordOperation(ctx context.Context, op, datacenter string, start time.Time, err error) {
	code := gerrors.Code(err)
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("idc", datacenter),
		attribute.String("code", gerrors.CodeName(code)),
	)

	t.metrics.Operations.Add(ctx, 1, attrs)
	t.metrics.Duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)
}

// GrayBegun counts a new live gray transaction
func (t *Telemetry) GrayBegun(ctx context.Context, datacenter string) {
	t.metrics.ActiveGrays.Add(ctx, 1, metric.WithAttributes(attribute.String("idc", datacenter)))
}

// GrayEnded counts a gray transaction that was committed or rolled back
func (t *Telemetry) GrayEnded(ctx context.Context, datacenter string) {
	t.metrics.ActiveGrays.Add(ctx, -1, metric.WithAttributes(attribute.String("idc", datacenter)))
}
