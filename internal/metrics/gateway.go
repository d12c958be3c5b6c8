// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_gateway_requests_total",
		Help: "Backend requests by operation and result (ok|network|backend|cancelled|bad_response)",
	}, []string{"operation", "result"})

	gatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crazifier_gateway_request_duration_seconds",
		Help:    "Backend request latency by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation"})

	gatewayUploadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_gateway_upload_bytes_total",
		Help: "Audio bytes uploaded to the backend by operation",
	}, []string{"operation"})
)

// ObserveGatewayRequest records one backend exchange.
func ObserveGatewayRequest(operation, result string, d time.Duration) {
	gatewayRequests.WithLabelValues(operation, result).Inc()
	gatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// AddGatewayUpload counts uploaded audio bytes.
func AddGatewayUpload(operation string, n int) {
	gatewayUploadBytes.WithLabelValues(operation).Add(float64(n))
}
