package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/config"
)

const dialCheckTimeout = 10 * time.Second

// DialNetwork connects to the first healthy RPC endpoint of a network. An
// endpoint is healthy when it answers eth_chainId with the configured chain.
func DialNetwork(ctx context.Context, networkName string, network *config.NetworkConfig, logger *logrus.Logger) (*ethclient.Client, error) {
	if len(network.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("network %s has no rpc endpoints", networkName)
	}

	var lastErr error
	for i, endpoint := range network.RPCEndpoints {
		entry := logger.WithFields(logrus.Fields{
			"network":  networkName,
			"endpoint": endpoint,
			"attempt":  fmt.Sprintf("%d/%d", i+1, len(network.RPCEndpoints)),
		})

		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			entry.WithError(err).Warn("❌ [DialNetwork] Dial failed")
			lastErr = err
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
		chainID, err := client.ChainID(checkCtx)
		cancel()
		if err != nil {
			entry.WithError(err).Warn("❌ [DialNetwork] ChainID check failed")
			client.Close()
			lastErr = err
			continue
		}

		if network.ChainID != 0 && chainID.Int64() != int64(network.ChainID) {
			entry.WithFields(logrus.Fields{
				"expected_chain_id": network.ChainID,
				"actual_chain_id":   chainID.String(),
			}).Warn("⚠️ [DialNetwork] Endpoint serves a different chain")
			client.Close()
			lastErr = fmt.Errorf("endpoint %s serves chain %s, expected %d", endpoint, chainID, network.ChainID)
			continue
		}

		entry.WithField("chain_id", chainID.String()).Info("✅ [DialNetwork] Connected")
		return client, nil
	}

	return nil, fmt.Errorf("failed to connect to %s network: %w", networkName, lastErr)
}
