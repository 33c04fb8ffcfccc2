package metrics

import (
	"fmt"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Claim run metrics
	// ============================================
	ClaimRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_runs_total",
			Help: "Total number of claim runs by outcome",
		},
		[]string{"outcome"},
	)

	ClaimStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claim_stage_duration_seconds",
			Help:    "Claim pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ClaimProofVerification = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "claim_proof_verification",
			Help: "Result of the last on-chain proof verification (1=valid, 0=invalid)",
		},
		[]string{"proof"},
	)

	ClaimSolvencyMissing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claim_solvency_missing",
		Help: "Funding shortfall of the tally contract in token base units (0 when solvent)",
	})

	ClaimAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claim_amount",
		Help: "Allocated amount of the last claim in token base units",
	})

	// ============================================
	// Supporting connections
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claim_db_connection_status",
		Help: "Audit database connection status (1=healthy, 0=unhealthy)",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claim_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})
)

// ObserveStage records the duration of a pipeline stage started at start.
func ObserveStage(stage string, start time.Time) {
	ClaimStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SetProofVerification records a verification outcome for proof.
func SetProofVerification(proof string, valid bool) {
	value := 0.0
	if valid {
		value = 1
	}
	ClaimProofVerification.WithLabelValues(proof).Set(value)
}

// SetBigGauge sets a gauge from a big integer; precision loss above 2^53
// is acceptable for dashboards.
func SetBigGauge(g prometheus.Gauge, v *big.Int) {
	if v == nil {
		return
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	g.Set(f)
}

// WriteTextfile writes the default registry for the node-exporter textfile
// collector. Empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
