package clients

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally-claim/internal/config"
)

const kmsTestKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func newKMSTestServer(t *testing.T, handler http.HandlerFunc) *KMSClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewKMSClient(config.KMSConfig{
		Enabled:    true,
		ServiceURL: server.URL + "/",
		AuthToken:  "secret",
		Timeout:    5,
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestKMSClient_SignDigest(t *testing.T) {
	key, err := crypto.HexToECDSA(kmsTestKey)
	require.NoError(t, err)
	digest := crypto.Keccak256([]byte("claim"))

	client := newKMSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/dual-layer/sign", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req KMSSignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claim-operator", req.KeyAlias)
		assert.Equal(t, 11155111, req.ChainID)
		assert.Equal(t, "k1-value", req.K1)

		data, err := hexutil.Decode(req.Data)
		require.NoError(t, err)
		sig, err := crypto.Sign(data, key)
		require.NoError(t, err)
		sig[64] += 27 // legacy V encoding, no 0x prefix
		writeJSON(t, w, KMSSignResponse{Success: true, Signature: hex.EncodeToString(sig)})
	})

	sig, err := client.SignDigest(context.Background(), "claim-operator", "k1-value", digest, 11155111)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.LessOrEqual(t, sig[64], byte(1))

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestKMSClient_SignDigestErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		contains string
	}{
		{
			name: "service rejects",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, KMSSignResponse{Success: false, Error: "key locked"})
			},
			contains: "key locked",
		},
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			},
			contains: "status=401",
		},
		{
			name: "short signature",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, KMSSignResponse{Success: true, Signature: "0x0102"})
			},
			contains: "expected 65",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newKMSTestServer(t, tt.handler)
			_, err := client.SignDigest(context.Background(), "alias", "", make([]byte, 32), 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestKMSClient_SignerAddress(t *testing.T) {
	client := newKMSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/keys", r.URL.Path)
		writeJSON(t, w, KMSGetKeysResponse{
			Success: true,
			Count:   2,
			Keys: []KMSKeyInfo{
				{KeyAlias: "claim-operator", ChainID: 1, PublicAddress: "0x1111111111111111111111111111111111111111"},
				{KeyAlias: "claim-operator", ChainID: 11155111, PublicAddress: "0x71562b71999873DB5b286dF957af199Ec94617F7"},
			},
		})
	})

	address, err := client.SignerAddress(context.Background(), "claim-operator", 11155111)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7"), address)

	_, err = client.SignerAddress(context.Background(), "other", 1)
	assert.ErrorContains(t, err, "key not found")
}

func TestKMSClient_HealthCheck(t *testing.T) {
	for _, status := range []string{"healthy", "degraded"} {
		t.Run(status, func(t *testing.T) {
			client := newKMSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				writeJSON(t, w, map[string]string{"status": status})
			})

			err := client.HealthCheck(context.Background())
			if status == "healthy" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "degraded")
			}
		})
	}
}
