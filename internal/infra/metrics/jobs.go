package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(songJobsTotal) }

var songJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "song_jobs_total",
		Help: "Total number of song generation jobs by transition.",
	},
	[]string{"status"}, // 'generating', 'completed', 'failed'
)

func IncSongJob(status string) {
	songJobsTotal.WithLabelValues(norm(status)).Inc()
}
