package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tally-claim/internal/clients"
	"tally-claim/internal/config"
	"tally-claim/internal/db"
	"tally-claim/internal/interfaces"
	"tally-claim/internal/repository"
	"tally-claim/internal/services"
)

// ServiceContainer holds everything one claim run needs.
type ServiceContainer struct {
	NetworkName string
	Network     *config.NetworkConfig
	Contracts   *config.ContractsConfigManager

	// Ledger
	EthClient *ethclient.Client
	Registry  *clients.MACIClient

	// Optional supporting services
	DB         *gorm.DB
	NATSClient *clients.NATSClient
	KMSClient  *clients.KMSClient

	ClaimService *services.ClaimService
	Logger       *logrus.Logger
}

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// InitializeContainer connects to the network and wires the claim pipeline.
// A signer is only set up for real claims; dry runs need none.
func InitializeContainer(ctx context.Context, cfg *config.Config, networkName string, dryRun bool, logger *logrus.Logger) (*ServiceContainer, error) {
	if networkName == "" {
		networkName = cfg.Network
	}
	network, err := cfg.GetNetworkConfig(networkName)
	if err != nil {
		return nil, err
	}

	c := &ServiceContainer{
		NetworkName: networkName,
		Network:     network,
		Logger:      logger,
	}

	c.Contracts, err = config.NewContractsConfigManager(cfg.Blockchain.ContractsFile)
	if err != nil {
		return nil, err
	}
	c.Contracts.ApplyNetworkOverrides(networkName, network)

	registryAddress, err := c.Contracts.Address(networkName, config.ContractMACI)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registry address: %w", err)
	}

	c.EthClient, err = clients.DialNetwork(ctx, networkName, network, logger)
	if err != nil {
		return nil, err
	}
	c.Registry = clients.NewMACIClient(registryAddress, c.EthClient)

	if cfg.KMS.Enabled && cfg.KMS.ServiceURL != "" {
		c.KMSClient = clients.NewKMSClient(cfg.KMS)
		if err := c.KMSClient.HealthCheck(ctx); err != nil {
			logger.WithError(err).Warn("⚠️ [ServiceContainer] KMS health check failed")
		}
	}

	var sender *services.TransactionService
	if !dryRun {
		var kms services.KMSSigner
		if c.KMSClient != nil {
			kms = c.KMSClient
		}
		strategy, err := services.NewSigningStrategy(ctx, network, kms)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set up signer: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"signer":  strategy.Name(),
			"address": strategy.Address().Hex(),
		}).Info("🔑 [ServiceContainer] Signer ready")
		sender = services.NewTransactionService(c.EthClient, strategy, network, logger)
	}

	// audit trail and events are best-effort
	var store repository.ClaimRecordRepository
	if cfg.Database.DSN != "" {
		c.DB, err = db.InitDB(cfg.Database.DSN, logger)
		if err != nil {
			logger.WithError(err).Warn("⚠️ [ServiceContainer] Claim audit database unavailable, continuing without it")
		} else {
			store = repository.NewClaimRecordRepository(c.DB)
		}
	}

	var publisher services.OutcomePublisher
	if cfg.NATS.URL != "" {
		c.NATSClient, err = clients.NewNATSClient(cfg.NATS, logger)
		if err != nil {
			logger.WithError(err).Warn("⚠️ [ServiceContainer] NATS unavailable, claim outcome will not be published")
		} else {
			publisher = c.NATSClient
		}
	}

	var submitterSender interfaces.TxSender
	if sender != nil {
		submitterSender = sender
	}

	c.ClaimService = services.NewClaimService(services.ClaimServiceDeps{
		Resolver:  services.NewLedgerResolver(c.Registry, logger),
		Tally:     clients.TallyContractFactory(c.EthClient),
		Checker:   services.NewCrossChecker(logger),
		Allocator: services.NewAllocationCalculator(logger),
		Submitter: services.NewClaimSubmitter(submitterSender, logger),
		Recorder:  services.NewOutcomeRecorder(networkName, store, publisher, logger),
		TxURL: func(txHash string) string {
			return c.Contracts.TxURL(networkName, txHash)
		},
		Logger: logger,
	})

	return c, nil
}

// Close releases network and database connections.
func (c *ServiceContainer) Close() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.DB != nil {
		db.Close(c.DB)
	}
	if c.EthClient != nil {
		c.EthClient.Close()
	}
}
