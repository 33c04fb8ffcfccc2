package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/config"
	"tally-claim/internal/interfaces"
	"tally-claim/internal/types"
)

const (
	defaultGasPrice       = 5_000_000_000 // 5 gwei, used when the node cannot suggest one
	gasPriceMultiplier    = 120           // percent of the suggested price
	gasEstimateMultiplier = 2
	minedWaitPhase        = 30 * time.Second
	receiptPollInterval   = 10 * time.Second
	receiptQueryTimeout   = 15 * time.Second
)

// TxBackend is the node surface needed to send a transaction and wait for
// it. *ethclient.Client implements it.
type TxBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// TransactionService builds, signs, sends and confirms legacy EIP-155
// transactions for one network.
type TransactionService struct {
	backend  TxBackend
	strategy SigningStrategy
	network  *config.NetworkConfig
	logger   *logrus.Logger

	minedWait    time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
}

var _ interfaces.TxSender = (*TransactionService)(nil)

// NewTransactionService creates a sender for network signing with strategy.
func NewTransactionService(backend TxBackend, strategy SigningStrategy, network *config.NetworkConfig, logger *logrus.Logger) *TransactionService {
	maxWait := time.Duration(network.ConfirmationTimeout) * time.Second
	if maxWait <= 0 {
		maxWait = config.DefaultConfirmationTimeout * time.Second
	}
	return &TransactionService{
		backend:      backend,
		strategy:     strategy,
		network:      network,
		logger:       logger,
		minedWait:    minedWaitPhase,
		pollInterval: receiptPollInterval,
		maxWait:      maxWait,
	}
}

// From returns the signer address.
func (s *TransactionService) From() common.Address {
	return s.strategy.Address()
}

func submissionFailed(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrSubmissionFailed, step, err)
}

// SendAndWait signs and broadcasts a call to `to` and blocks until it is
// mined or the confirmation timeout expires.
func (s *TransactionService) SendAndWait(ctx context.Context, to common.Address, data []byte) (*types.TxReceipt, error) {
	from := s.strategy.Address()
	log := s.logger.WithFields(logrus.Fields{
		"signer":   s.strategy.Name(),
		"from":     from.Hex(),
		"to":       to.Hex(),
		"data_len": len(data),
	})

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, submissionFailed("failed to get chain id", err)
	}
	if s.network.ChainID != 0 && chainID.Int64() != int64(s.network.ChainID) {
		return nil, submissionFailed("chain id check",
			fmt.Errorf("node serves chain %s, expected %d", chainID, s.network.ChainID))
	}

	tx, err := s.buildUnsignedTransaction(ctx, from, to, data)
	if err != nil {
		return nil, err
	}

	balance, err := s.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, submissionFailed("failed to query balance", err)
	}
	if err := s.validateGasBalance(tx, balance); err != nil {
		return nil, submissionFailed("gas balance check", err)
	}

	signedTx, err := s.signTransaction(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}

	log = log.WithField("tx_hash", signedTx.Hash().Hex())
	log.WithFields(logrus.Fields{
		"nonce":     signedTx.Nonce(),
		"gas_limit": signedTx.Gas(),
		"gas_price": signedTx.GasPrice().String(),
	}).Info("🚀 [TransactionService] Sending transaction")

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, submissionFailed("failed to send transaction", err)
	}

	receipt, err := s.waitForTransactionWithRetry(ctx, signedTx)
	if err != nil {
		return nil, submissionFailed("failed to confirm transaction "+signedTx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, submissionFailed("transaction "+signedTx.Hash().Hex(),
			fmt.Errorf("reverted in block %d", blockNumber(receipt)))
	}

	log.WithFields(logrus.Fields{
		"block":    blockNumber(receipt),
		"gas_used": receipt.GasUsed,
	}).Info("✅ [TransactionService] Transaction confirmed")

	return &types.TxReceipt{
		TxHash:      signedTx.Hash(),
		BlockNumber: blockNumber(receipt),
		GasUsed:     receipt.GasUsed,
		GasPrice:    signedTx.GasPrice(),
	}, nil
}

func blockNumber(receipt *ethtypes.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

// gasPrice uses the configured price, or the suggested price plus 20%.
func (s *TransactionService) gasPrice(ctx context.Context) *big.Int {
	if s.network.GasPrice != "" && s.network.GasPrice != "auto" {
		if price, ok := new(big.Int).SetString(s.network.GasPrice, 10); ok {
			return price
		}
		s.logger.WithField("gas_price", s.network.GasPrice).Warn("⚠️ [TransactionService] Invalid configured gas price, using node suggestion")
	}

	suggested, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("⚠️ [TransactionService] Failed to get gas price, using default")
		return big.NewInt(defaultGasPrice)
	}
	adjusted := new(big.Int).Mul(suggested, big.NewInt(gasPriceMultiplier))
	return adjusted.Div(adjusted, big.NewInt(100))
}

// gasLimit uses the configured limit, or twice the node estimate.
func (s *TransactionService) gasLimit(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	if s.network.GasLimit > 0 {
		return s.network.GasLimit, nil
	}
	estimate, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimate * gasEstimateMultiplier, nil
}

func (s *TransactionService) buildUnsignedTransaction(ctx context.Context, from, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, submissionFailed("failed to get nonce", err)
	}

	gasLimit, err := s.gasLimit(ctx, from, to, data)
	if err != nil {
		return nil, submissionFailed("gas limit", err)
	}

	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: s.gasPrice(ctx),
		Data:     data,
	}), nil
}

// validateGasBalance checks that the signer can pay gasLimit * gasPrice.
func (s *TransactionService) validateGasBalance(tx *ethtypes.Transaction, balance *big.Int) error {
	totalGasCost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))

	fields := logrus.Fields{
		"gas_price":      tx.GasPrice().String(),
		"gas_limit":      tx.Gas(),
		"total_gas_cost": totalGasCost.String(),
		"balance":        balance.String(),
	}
	if balance.Cmp(totalGasCost) < 0 {
		fields["shortfall"] = new(big.Int).Sub(totalGasCost, balance).String()
		s.logger.WithFields(fields).Error("❌ [TransactionService] Insufficient balance for gas")
		return fmt.Errorf("insufficient funds for gas: balance %s wei, required %s wei", balance, totalGasCost)
	}

	s.logger.WithFields(fields).Debug("💸 [TransactionService] Gas balance sufficient")
	return nil
}

func (s *TransactionService) signTransaction(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	signer := ethtypes.NewEIP155Signer(chainID)
	sigHash := signer.Hash(tx)

	signature, err := s.strategy.Sign(ctx, sigHash.Bytes())
	if err != nil {
		return nil, submissionFailed("failed to sign with "+s.strategy.Name(), err)
	}

	signedTx, err := tx.WithSignature(signer, signature)
	if err != nil {
		return nil, submissionFailed("failed to apply signature", err)
	}

	sender, err := ethtypes.Sender(signer, signedTx)
	if err != nil {
		return nil, submissionFailed("failed to recover sender", err)
	}
	if sender != s.strategy.Address() {
		return nil, submissionFailed("signature check",
			fmt.Errorf("recovered sender %s, expected %s", sender.Hex(), s.strategy.Address().Hex()))
	}
	return signedTx, nil
}

// waitForTransactionWithRetry waits with WaitMined first, then falls back to
// polling for the receipt until maxWait, then makes one final query.
func (s *TransactionService) waitForTransactionWithRetry(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	txHash := tx.Hash()
	start := time.Now()
	deadline := start.Add(s.maxWait)
	log := s.logger.WithField("tx_hash", txHash.Hex())

	firstPhase := s.minedWait
	if firstPhase > s.maxWait {
		firstPhase = s.maxWait
	}
	minedCtx, cancel := context.WithTimeout(ctx, firstPhase)
	receipt, err := bind.WaitMined(minedCtx, s.backend, tx)
	cancel()
	if err == nil && receipt != nil {
		return receipt, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.WithError(err).Warn("⏳ [TransactionService] Not mined yet, polling for receipt")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	polls := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		polls++

		receipt, err := s.queryReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.WithError(err).WithField("poll", polls).Warn("⚠️ [TransactionService] Error querying receipt")
		}
	}

	receipt, err = s.queryReceipt(ctx, txHash)
	if err == nil && receipt != nil {
		return receipt, nil
	}
	if err == nil {
		err = ethereum.NotFound
	}

	log.WithFields(logrus.Fields{
		"elapsed": time.Since(start).String(),
		"polls":   polls,
	}).Error("❌ [TransactionService] Confirmation timed out, check the explorer for the final status")
	return nil, fmt.Errorf("transaction confirmation timeout after %v: %w", time.Since(start).Round(time.Second), err)
}

func (s *TransactionService) queryReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	queryCtx, cancel := context.WithTimeout(ctx, receiptQueryTimeout)
	defer cancel()
	return s.backend.TransactionReceipt(queryCtx, txHash)
}
