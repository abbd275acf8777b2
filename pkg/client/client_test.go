package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySolidity(t *testing.T) {
	var got VerifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/solidity/verify", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(VerifyResult{
			Match:           "full",
			FilePath:        "Token.sol",
			ContractName:    "Token",
			CompilerVersion: "v0.8.28+commit.7893614a",
			Bytecode:        "0x6080",
		})
	}))
	defer server.Close()

	result, err := New(server.URL).VerifySolidity(context.Background(), VerifyRequest{
		DeployedBytecode: "0x6080",
		CompilerVersion:  "v0.8.28+commit.7893614a",
		Sources:          map[string]string{"Token.sol": "contract Token {}"},
	})
	require.NoError(t, err)

	assert.Equal(t, "full", result.Match)
	assert.Equal(t, "Token", result.ContractName)
	assert.Equal(t, "0x6080", got.DeployedBytecode)
}

func TestVerifySolidityAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    "NO_MATCHING_CONTRACTS",
				"message": "no contract matches the deployed bytecode",
			},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).VerifySolidity(context.Background(), VerifyRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "NO_MATCHING_CONTRACTS", apiErr.Code)
	assert.Contains(t, apiErr.Message, "deployed bytecode")
}

func TestVerifySolidityNonEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).VerifySolidity(context.Background(), VerifyRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "UNKNOWN", apiErr.Code)
	assert.Equal(t, "upstream timeout", apiErr.Message)
}

func TestVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/solidity/versions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"versions": []string{"v0.8.27+commit.40a35a09", "v0.8.28+commit.7893614a"},
		})
	}))
	defer server.Close()

	versions, err := New(server.URL).Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v0.8.27+commit.40a35a09", "v0.8.28+commit.7893614a"}, versions)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, New(server.URL).Health(context.Background()))
}

func TestBaseURLTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, New(server.URL+"/").Health(context.Background()))
}
