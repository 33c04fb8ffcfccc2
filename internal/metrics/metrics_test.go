package metrics

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetProofVerification(t *testing.T) {
	SetProofVerification("tally_result", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(ClaimProofVerification.WithLabelValues("tally_result")))

	SetProofVerification("tally_result", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(ClaimProofVerification.WithLabelValues("tally_result")))
}

func TestSetBigGauge(t *testing.T) {
	SetBigGauge(ClaimAmount, big.NewInt(500))
	assert.Equal(t, 500.0, testutil.ToFloat64(ClaimAmount))

	// nil leaves the previous value
	SetBigGauge(ClaimAmount, nil)
	assert.Equal(t, 500.0, testutil.ToFloat64(ClaimAmount))
}

func TestWriteTextfile(t *testing.T) {
	require.NoError(t, WriteTextfile(""))

	ClaimRunsTotal.WithLabelValues("claimed").Inc()
	path := filepath.Join(t.TempDir(), "claim.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `claim_runs_total{outcome="claimed"}`)

	err = WriteTextfile(filepath.Join(t.TempDir(), "missing", "claim.prom"))
	assert.ErrorContains(t, err, "failed to write metrics textfile")
}
