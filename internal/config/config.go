package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Network    string           `yaml:"network"` // network used when -network is not given
	Log        LogConfig        `yaml:"log"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	KMS        KMSConfig        `yaml:"kms"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
}

// LogConfig logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // text or json
}

// BlockchainConfig Blockchain configuration
type BlockchainConfig struct {
	ContractsFile string                   `yaml:"contractsFile"` // contract address registry
	Networks      map[string]NetworkConfig `yaml:"networks"`
}

// NetworkConfig NetworkConfiguration
type NetworkConfig struct {
	ChainID      int      `yaml:"chainId"`
	RPCEndpoints []string `yaml:"rpcEndpoints"`

	// signer: KMS or a direct private key
	KMSKeyAlias   string `yaml:"kmsKeyAlias"`
	KMSK1         string `yaml:"kmsK1"` // transport key for dual-layer KMS signing
	KMSEnabled    bool   `yaml:"kmsEnabled"`
	PrivateKey    string `yaml:"privateKey"` // hex, with or without 0x
	UsePrivateKey bool   `yaml:"usePrivateKey"`

	GasPrice            string            `yaml:"gasPrice"`            // wei, or "auto"
	GasLimit            uint64            `yaml:"gasLimit"`            // 0 = estimate
	ConfirmationTimeout int               `yaml:"confirmationTimeout"` // seconds
	ContractAddresses   map[string]string `yaml:"contractAddresses"`   // overrides the contracts file
	Enabled             bool              `yaml:"enabled"`
}

// KMSConfig KMS service configuration
type KMSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServiceURL string `yaml:"serviceUrl"`
	AuthToken  string `yaml:"authToken"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// MetricsConfig metrics output
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node-exporter textfile collector path, empty = disabled
}

// DatabaseConfig claim audit database, empty DSN = disabled
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig claim outcome events, empty URL = disabled
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	SubjectPrefix   string `yaml:"subjectPrefix"`
	EnableJetStream bool   `yaml:"enableJetStream"`
}

const (
	DefaultConfirmationTimeout = 180
	DefaultSubjectPrefix       = "tally.claims"
)

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) (*Config, error) {
	// if configuration file path is empty, use default path
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

// ParseConfig parses YAML, applies defaults and environment overrides.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Blockchain.Networks == nil {
		cfg.Blockchain.Networks = make(map[string]NetworkConfig)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Blockchain.ContractsFile == "" {
		cfg.Blockchain.ContractsFile = "contracts.yaml"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	for name, network := range cfg.Blockchain.Networks {
		if network.ConfirmationTimeout <= 0 {
			network.ConfirmationTimeout = DefaultConfirmationTimeout
		}
		cfg.Blockchain.Networks[name] = network
	}
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(config *Config) {
	if network := os.Getenv("CLAIM_NETWORK"); network != "" {
		config.Network = network
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Log.Format = format
	}
	if contractsFile := os.Getenv("CONTRACTS_FILE"); contractsFile != "" {
		config.Blockchain.ContractsFile = contractsFile
	}

	// KMS configuration
	if kmsEnabled := os.Getenv("KMS_ENABLED"); kmsEnabled != "" {
		config.KMS.Enabled = kmsEnabled == "true"
	}
	if kmsServiceURL := os.Getenv("KMS_SERVICE_URL"); kmsServiceURL != "" {
		config.KMS.ServiceURL = kmsServiceURL
	}
	if kmsAuthToken := os.Getenv("KMS_AUTH_TOKEN"); kmsAuthToken != "" {
		config.KMS.AuthToken = kmsAuthToken
	}
	if kmsTimeout := os.Getenv("KMS_TIMEOUT"); kmsTimeout != "" {
		if t, err := strconv.Atoi(kmsTimeout); err == nil {
			config.KMS.Timeout = t
		}
	}

	if textfile := os.Getenv("METRICS_TEXTFILE"); textfile != "" {
		config.Metrics.Textfile = textfile
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	// blockchain network configuration
	for networkName, networkConfig := range config.Blockchain.Networks {
		prefix := strings.ToUpper(networkName)

		if kmsKeyAlias := os.Getenv("KMS_KEY_ALIAS"); kmsKeyAlias != "" {
			networkConfig.KMSKeyAlias = kmsKeyAlias
		} else if kmsKeyAlias := os.Getenv(prefix + "_KMS_KEY_ALIAS"); kmsKeyAlias != "" {
			networkConfig.KMSKeyAlias = kmsKeyAlias
		}
		if k1 := os.Getenv(prefix + "_KMS_K1"); k1 != "" {
			networkConfig.KMSK1 = k1
		}
		if kmsEnabled := os.Getenv("NETWORK_KMS_ENABLED"); kmsEnabled != "" {
			networkConfig.KMSEnabled = kmsEnabled == "true"
		}

		// network-specific key first (e.g. SEPOLIA_PRIVATE_KEY), then PRIVATE_KEY
		if !networkConfig.KMSEnabled {
			if privateKey := os.Getenv(prefix + "_PRIVATE_KEY"); privateKey != "" {
				networkConfig.PrivateKey = privateKey
			} else if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
				networkConfig.PrivateKey = privateKey
			}
		}

		if rpcEndpoints := os.Getenv(prefix + "_RPC_ENDPOINTS"); rpcEndpoints != "" {
			endpoints := strings.Split(rpcEndpoints, ",")
			networkConfig.RPCEndpoints = networkConfig.RPCEndpoints[:0]
			for _, e := range endpoints {
				if e = strings.TrimSpace(e); e != "" {
					networkConfig.RPCEndpoints = append(networkConfig.RPCEndpoints, e)
				}
			}
		}

		if gasPrice := os.Getenv(prefix + "_GAS_PRICE"); gasPrice != "" {
			networkConfig.GasPrice = gasPrice
		}
		if gasLimit := os.Getenv(prefix + "_GAS_LIMIT"); gasLimit != "" {
			if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
				networkConfig.GasLimit = limit
			}
		}

		// Registry address, e.g. SEPOLIA_MACI_ADDRESS
		if addr := os.Getenv(prefix + "_MACI_ADDRESS"); addr != "" {
			if networkConfig.ContractAddresses == nil {
				networkConfig.ContractAddresses = make(map[string]string)
			}
			networkConfig.ContractAddresses[ContractMACI] = addr
		}

		config.Blockchain.Networks[networkName] = networkConfig
	}
}

// GetNetworkConfig Get network configuration
func (c *Config) GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	if networkName == "" {
		networkName = c.Network
	}
	if networkName == "" {
		return nil, fmt.Errorf("no network selected")
	}

	network, exists := c.Blockchain.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}

	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}

	if len(network.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("network %s has no rpc endpoints", networkName)
	}

	return &network, nil
}
