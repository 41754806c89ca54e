package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallLatencyMs, lyricsCallsTotal) }

var (
	providerCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_provider_call_latency_ms",
			Help:    "Music provider call latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"op", "success"}, // op: 'generate', 'cover', 'record-info'
	)

	lyricsCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyrics_calls_total",
			Help: "Lyric-writer calls per provider and outcome.",
		},
		[]string{"provider", "success"},
	)
)

func ObserveProviderCall(op string, latencyMs float64, success bool) {
	providerCallLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).
		Observe(latencyMs)
}

func IncLyricsCall(provider string, success bool) {
	lyricsCallsTotal.WithLabelValues(norm(provider), strconv.FormatBool(success)).Inc()
}
