package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tally-claim/internal/config"
)

// ===== Signing strategies =====

// SigningStrategy signs transaction digests for one account.
type SigningStrategy interface {
	Name() string
	Address() common.Address
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// KMSSigner is the part of the KMS client used for signing.
type KMSSigner interface {
	SignDigest(ctx context.Context, keyAlias, k1 string, digest []byte, chainID int) ([]byte, error)
	SignerAddress(ctx context.Context, keyAlias string, chainID int) (common.Address, error)
}

// PrivateKeySigningStrategy signs with a key held in process memory.
type PrivateKeySigningStrategy struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigningStrategy parses a hex private key, with or without 0x.
func NewPrivateKeySigningStrategy(hexKey string) (*PrivateKeySigningStrategy, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &PrivateKeySigningStrategy{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *PrivateKeySigningStrategy) Name() string {
	return "PrivateKey"
}

func (s *PrivateKeySigningStrategy) Address() common.Address {
	return s.address
}

func (s *PrivateKeySigningStrategy) Sign(_ context.Context, digest []byte) ([]byte, error) {
	return crypto.Sign(digest, s.key)
}

// KMSSigningStrategy signs through the remote KMS service.
type KMSSigningStrategy struct {
	kms      KMSSigner
	keyAlias string
	k1       string
	chainID  int
	address  common.Address
}

// NewKMSSigningStrategy looks up the signer address of keyAlias.
func NewKMSSigningStrategy(ctx context.Context, kms KMSSigner, keyAlias, k1 string, chainID int) (*KMSSigningStrategy, error) {
	if keyAlias == "" {
		return nil, errors.New("KMS key alias is not configured")
	}
	address, err := kms.SignerAddress(ctx, keyAlias, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve KMS signer address: %w", err)
	}
	return &KMSSigningStrategy{kms: kms, keyAlias: keyAlias, k1: k1, chainID: chainID, address: address}, nil
}

func (s *KMSSigningStrategy) Name() string {
	return "KMS"
}

func (s *KMSSigningStrategy) Address() common.Address {
	return s.address
}

func (s *KMSSigningStrategy) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	return s.kms.SignDigest(ctx, s.keyAlias, s.k1, digest, s.chainID)
}

// NewSigningStrategy picks the signer configured for a network: KMS when
// enabled, otherwise the private key.
func NewSigningStrategy(ctx context.Context, network *config.NetworkConfig, kms KMSSigner) (SigningStrategy, error) {
	if network.KMSEnabled && !network.UsePrivateKey {
		if kms == nil {
			return nil, errors.New("KMS signing enabled but KMS service is not configured")
		}
		return NewKMSSigningStrategy(ctx, kms, network.KMSKeyAlias, network.KMSK1, network.ChainID)
	}
	if network.PrivateKey == "" {
		return nil, errors.New("no signer configured: set a private key or enable KMS")
	}
	return NewPrivateKeySigningStrategy(network.PrivateKey)
}
