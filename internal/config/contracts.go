// Contract address registry: symbolic contract name + network -> address
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ContractMACI is the symbolic name of the root poll registry.
const ContractMACI = "MACI"

// ContractNetworkConfig contract and explorer info of one network
type ContractNetworkConfig struct {
	ChainID   uint64            `yaml:"chain_id" json:"chain_id"`
	Name      string            `yaml:"name" json:"name"`
	Explorer  string            `yaml:"explorer" json:"explorer"`
	Contracts map[string]string `yaml:"contracts" json:"contracts"`
}

// ContractsConfig Complete contract configuration
type ContractsConfig struct {
	Version  string                           `yaml:"version" json:"version"`
	Updated  string                           `yaml:"updated" json:"updated"`
	Networks map[string]ContractNetworkConfig `yaml:"networks" json:"networks"`
}

// ContractsConfigManager contract configuration manager
type ContractsConfigManager struct {
	config ContractsConfig
	mu     sync.RWMutex
}

// NewContractsConfigManager loads the registry file. A missing file yields
// an empty registry so that addresses can come from overrides only.
func NewContractsConfigManager(configPath string) (*ContractsConfigManager, error) {
	manager := &ContractsConfigManager{
		config: ContractsConfig{Networks: make(map[string]ContractNetworkConfig)},
	}
	if configPath == "" {
		return manager, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return manager, nil
		}
		return nil, fmt.Errorf("failed to read contracts file: %w", err)
	}
	if err := manager.load(data); err != nil {
		return nil, err
	}
	return manager, nil
}

func (m *ContractsConfigManager) load(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg ContractsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse contracts file: %w", err)
	}
	if cfg.Networks == nil {
		cfg.Networks = make(map[string]ContractNetworkConfig)
	}
	m.config = cfg
	return nil
}

// GetNetworkByName Get network configuration by name
func (m *ContractsConfigManager) GetNetworkByName(networkName string) (*ContractNetworkConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	config, exists := m.config.Networks[networkName]
	if !exists {
		return nil, false
	}
	return &config, true
}

// Override sets an address, taking precedence over the file.
func (m *ContractsConfigManager) Override(networkName, contractName, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	network := m.config.Networks[networkName]
	contracts := make(map[string]string, len(network.Contracts)+1)
	for k, v := range network.Contracts {
		contracts[k] = v
	}
	contracts[contractName] = address
	network.Contracts = contracts
	m.config.Networks[networkName] = network
}

// Address resolves a symbolic contract name on a network.
func (m *ContractsConfigManager) Address(networkName, contractName string) (common.Address, error) {
	network, exists := m.GetNetworkByName(networkName)
	if !exists {
		return common.Address{}, fmt.Errorf("network %s not found in contract registry", networkName)
	}

	address, exists := network.Contracts[contractName]
	if !exists || strings.TrimSpace(address) == "" {
		return common.Address{}, fmt.Errorf("contract %s not configured on network %s", contractName, networkName)
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("contract %s on network %s has invalid address %q", contractName, networkName, address)
	}

	resolved := common.HexToAddress(address)
	if resolved == (common.Address{}) {
		return common.Address{}, fmt.Errorf("contract %s on network %s is the zero address", contractName, networkName)
	}
	return resolved, nil
}

// GetExplorerUrl Get block explorer URL
func (m *ContractsConfigManager) GetExplorerUrl(networkName string) (string, bool) {
	network, exists := m.GetNetworkByName(networkName)
	if !exists || network.Explorer == "" {
		return "", false
	}
	return strings.TrimRight(network.Explorer, "/"), true
}

// TxURL returns the explorer link for a transaction, if an explorer is known.
func (m *ContractsConfigManager) TxURL(networkName, txHash string) string {
	explorer, ok := m.GetExplorerUrl(networkName)
	if !ok {
		return ""
	}
	return explorer + "/tx/" + txHash
}

// ApplyNetworkOverrides copies per-network contract addresses from the main
// config into the registry.
func (m *ContractsConfigManager) ApplyNetworkOverrides(networkName string, network *NetworkConfig) {
	for name, address := range network.ContractAddresses {
		if strings.TrimSpace(address) != "" {
			m.Override(networkName, name, address)
		}
	}
}
