package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tally-claim/internal/config"
)

// KMSClient KMS service client
type KMSClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// KMSSignRequest KMS dual-layer decryption signature request
type KMSSignRequest struct {
	KeyAlias string `json:"key_alias"`
	ChainID  int    `json:"chain_id"`
	Data     string `json:"data"` // digest to sign (hex)
	K1       string `json:"k1"`   // transport key K1 (base64)
}

// KMSSignResponse KMS dual-layer decryption signature response
type KMSSignResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// KMSGetKeysResponse stored key listing
type KMSGetKeysResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Keys    []KMSKeyInfo `json:"keys"`
	Error   string       `json:"error,omitempty"`
}

// KMSKeyInfo one stored key
type KMSKeyInfo struct {
	KeyAlias      string    `json:"key_alias"`
	ChainID       int       `json:"chain_id"`
	PublicAddress string    `json:"public_address"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewKMSClient Create KMS client
func NewKMSClient(cfg config.KMSConfig) *KMSClient {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &KMSClient{
		baseURL:   strings.TrimRight(cfg.ServiceURL, "/"),
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SignDigest signs a 32-byte transaction digest with the key stored under
// keyAlias. The returned signature is 65 bytes [R || S || V] with V in {0, 1}.
func (c *KMSClient) SignDigest(ctx context.Context, keyAlias, k1 string, digest []byte, chainID int) ([]byte, error) {
	req := KMSSignRequest{
		KeyAlias: keyAlias,
		ChainID:  chainID,
		Data:     hexutil.Encode(digest),
		K1:       k1,
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/api/v1/dual-layer/sign", req)
	if err != nil {
		return nil, fmt.Errorf("KMS sign request failed: %w", err)
	}

	var signResp KMSSignResponse
	if err := json.Unmarshal(response, &signResp); err != nil {
		return nil, fmt.Errorf("failed to parse KMS sign response: %w", err)
	}
	if !signResp.Success {
		return nil, fmt.Errorf("KMS sign failed: %s", signResp.Error)
	}

	signature, err := hexutil.Decode(ensureHexPrefix(signResp.Signature))
	if err != nil {
		return nil, fmt.Errorf("KMS returned invalid signature: %w", err)
	}
	if len(signature) != 65 {
		return nil, fmt.Errorf("KMS returned %d byte signature, expected 65", len(signature))
	}
	// legacy encodings use 27/28
	if signature[64] >= 27 {
		signature[64] -= 27
	}
	return signature, nil
}

// GetStoredKeys lists the keys held by the KMS
func (c *KMSClient) GetStoredKeys(ctx context.Context) (*KMSGetKeysResponse, error) {
	response, err := c.makeRequest(ctx, http.MethodGet, "/api/v1/keys", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get KMS keys: %w", err)
	}

	var keysResp KMSGetKeysResponse
	if err := json.Unmarshal(response, &keysResp); err != nil {
		return nil, fmt.Errorf("failed to parse KMS keys response: %w", err)
	}
	if !keysResp.Success {
		return nil, fmt.Errorf("failed to get KMS keys: %s", keysResp.Error)
	}

	return &keysResp, nil
}

// GetKeyByAlias finds a stored key by alias and chain
func (c *KMSClient) GetKeyByAlias(ctx context.Context, keyAlias string, chainID int) (*KMSKeyInfo, error) {
	keysResp, err := c.GetStoredKeys(ctx)
	if err != nil {
		return nil, err
	}

	for _, key := range keysResp.Keys {
		if key.KeyAlias == keyAlias && key.ChainID == chainID {
			return &key, nil
		}
	}

	return nil, fmt.Errorf("key not found: alias=%s, chainID=%d", keyAlias, chainID)
}

// SignerAddress returns the address of the key stored under keyAlias.
func (c *KMSClient) SignerAddress(ctx context.Context, keyAlias string, chainID int) (common.Address, error) {
	key, err := c.GetKeyByAlias(ctx, keyAlias, chainID)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(key.PublicAddress) {
		return common.Address{}, fmt.Errorf("KMS key %s has invalid address %q", keyAlias, key.PublicAddress)
	}
	return common.HexToAddress(key.PublicAddress), nil
}

// HealthCheck KMS service check
func (c *KMSClient) HealthCheck(ctx context.Context) error {
	response, err := c.makeRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("KMS health check failed: %w", err)
	}

	var healthResp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &healthResp); err != nil {
		return fmt.Errorf("failed to parse KMS health response: %w", err)
	}
	if healthResp.Status != "healthy" {
		return fmt.Errorf("KMS service status: %s", healthResp.Status)
	}

	return nil
}

// makeRequest HTTP request
func (c *KMSClient) makeRequest(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	url := c.baseURL + path

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tally-claim/1.0")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
		req.Header.Set("X-Service-Name", "tally-claim")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP request failed: status=%d, body=%s", resp.StatusCode, string(responseBody))
	}

	return responseBody, nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
