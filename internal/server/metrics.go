package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"panorama-viewer/internal/panorama"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panorama_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panorama_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panorama_uploads_total",
			Help: "Upload attempts by result (ok or an error code)",
		},
		[]string{"result"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panorama_upload_bytes_total",
			Help: "Bytes of successfully stored panoramas",
		},
	)
)

func observeRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func recordUpload(size int, err error) {
	if err != nil {
		code, _ := panorama.Public(err)
		uploadsTotal.WithLabelValues(code).Inc()
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytesTotal.Add(float64(size))
}
