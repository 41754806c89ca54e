package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerEntriesTotal) }

var ledgerEntriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_ledger_entries_total",
		Help: "Append-only credit ledger entries by type.",
	},
	[]string{"type"}, // 'add', 'deduct'
)

func IncLedgerEntry(entryType string) {
	ledgerEntriesTotal.WithLabelValues(norm(entryType)).Inc()
}
