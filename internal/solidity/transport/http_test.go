package transport

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Holytrade/blockscout-rs/internal/solidity"
	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
	"github.com/Holytrade/blockscout-rs/internal/solidity/verifier"
)

// fakeService drives the matching engine against canned compiler output,
// so requests exercise real grading without a compiler on disk.
type fakeService struct {
	output   *compiler.Output
	err      error
	versions []string
}

func (f *fakeService) Verify(ctx context.Context, req solidity.VerificationRequest) (*verifier.Success, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, err := verifier.New(f, cannedRunner{f.output},
		req.CompilerVersion, req.CreationBytecode, req.DeployedBytecode, req.ChainID)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, &req.Content)
}

func (f *fakeService) CompilerFor(ctx context.Context, v compiler.Version) (string, error) {
	return "/usr/bin/solc", nil
}

func (f *fakeService) Versions() []compiler.Version {
	out := make([]compiler.Version, len(f.versions))
	for i, s := range f.versions {
		v, err := compiler.ParseVersion(s)
		if err != nil {
			panic(err)
		}
		out[i] = v
	}
	return out
}

type cannedRunner struct {
	output *compiler.Output
}

func (r cannedRunner) Run(ctx context.Context, compilerPath string, input *compiler.Input) (*compiler.Output, error) {
	return r.output, nil
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/solidity", func(r chi.Router) {
		NewHandler(svc).RegisterRoutes(r)
	})
	return r
}

func postVerify(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/solidity/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// bytecodeWithMetadata builds executable code plus a synthetic CBOR metadata
// suffix distinguished by fill.
func bytecodeWithMetadata(code []byte, fill byte) []byte {
	meta := bytes.Repeat([]byte{fill}, 32)
	meta[0] = 0xa2
	out := append(append([]byte{}, code...), meta...)
	return append(out, 0x00, 0x20)
}

func emittedContract(deployed []byte) compiler.Contract {
	return compiler.Contract{
		ABI: json.RawMessage(`[{"type":"constructor","inputs":[]}]`),
		EVM: compiler.ContractEVM{
			DeployedBytecode: compiler.BytecodeObject{Object: hex.EncodeToString(deployed)},
		},
	}
}

func TestHandleVerifyMatchesSecondContract(t *testing.T) {
	tokenCode := bytecodeWithMetadata([]byte{0x60, 0x80, 0x60, 0x40, 0x52}, 0xaa)
	ownableCode := bytecodeWithMetadata([]byte{0x60, 0x80, 0x60, 0x40, 0x53}, 0xaa)
	saleCode := bytecodeWithMetadata([]byte{0x60, 0x80, 0x60, 0x40, 0x54}, 0xaa)

	// Two source files, one declaring two contracts; the deployed bytecode
	// is byte identical to the second contract of the first file.
	svc := &fakeService{output: &compiler.Output{
		Contracts: map[string]map[string]compiler.Contract{
			"contracts/Token.sol": {
				"Ownable": emittedContract(ownableCode),
				"Token":   emittedContract(tokenCode),
			},
			"contracts/Sale.sol": {
				"Sale": emittedContract(saleCode),
			},
		},
	}}

	rec := postVerify(t, newTestRouter(svc), VerifyRequest{
		DeployedBytecode: "0x" + hex.EncodeToString(tokenCode),
		CompilerVersion:  "v0.8.28+commit.7893614a",
		Sources: map[string]string{
			"contracts/Token.sol": "contract Ownable {} contract Token {}",
			"contracts/Sale.sol":  "contract Sale {}",
		},
		ChainID: "1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, "full", result.Match)
	assert.Equal(t, "contracts/Token.sol", result.FilePath)
	assert.Equal(t, "Token", result.ContractName)
	assert.Equal(t, "v0.8.28+commit.7893614a", result.CompilerVersion)
	assert.Equal(t, "0x"+hex.EncodeToString(tokenCode), result.Bytecode)
	assert.Empty(t, result.ConstructorArguments)
	assert.NotEmpty(t, result.ABI)
}

func TestHandleVerifyPartialWithConstructorArguments(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	compiled := bytecodeWithMetadata(code, 0xaa)
	onchain := bytecodeWithMetadata(code, 0xbb)

	creationCode := bytecodeWithMetadata([]byte{0x60, 0x80, 0xf3}, 0xaa)
	ctorArgs := bytes.Repeat([]byte{0x07}, 32)

	contract := emittedContract(compiled)
	contract.EVM.Bytecode = compiler.BytecodeObject{Object: hex.EncodeToString(creationCode)}
	svc := &fakeService{output: &compiler.Output{
		Contracts: map[string]map[string]compiler.Contract{
			"Token.sol": {"Token": contract},
		},
	}}

	rec := postVerify(t, newTestRouter(svc), VerifyRequest{
		DeployedBytecode: "0x" + hex.EncodeToString(onchain),
		CreationBytecode: "0x" + hex.EncodeToString(append(append([]byte{}, creationCode...), ctorArgs...)),
		CompilerVersion:  "v0.8.28+commit.7893614a",
		Sources:          map[string]string{"Token.sol": "contract Token {}"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, "partial", result.Match)
	assert.Equal(t, "0x"+hex.EncodeToString(compiled), result.Bytecode)
	assert.Equal(t, "0x"+hex.EncodeToString(ctorArgs), result.ConstructorArguments)
}

func TestHandleVerifyMalformedBody(t *testing.T) {
	handler := newTestRouter(&fakeService{output: &compiler.Output{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/solidity/verify", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestHandleVerifyBadHex(t *testing.T) {
	handler := newTestRouter(&fakeService{output: &compiler.Output{}})

	rec := postVerify(t, handler, VerifyRequest{
		DeployedBytecode: "0xzz",
		CompilerVersion:  "v0.8.28+commit.7893614a",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "deployedBytecode")
}

func TestHandleVerifyErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        fmt.Errorf("%w: deployed bytecode is empty", verifier.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "version not found",
			err:        fmt.Errorf("%w: v0.9.99", compiler.ErrVersionNotFound),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VERSION_NOT_FOUND",
		},
		{
			name:       "compilation failed",
			err:        fmt.Errorf("%w: ParserError: Expected ';'", verifier.ErrCompilationFailed),
			wantStatus: http.StatusBadRequest,
			wantCode:   "COMPILATION_FAILED",
		},
		{
			name:       "no matching contracts",
			err:        verifier.ErrNoMatchingContracts,
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_MATCHING_CONTRACTS",
		},
		{
			name:       "fetch unavailable",
			err:        fmt.Errorf("%w: connection refused", compiler.ErrFetchUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "FETCH_UNAVAILABLE",
		},
		{
			name:       "corrupt artifact",
			err:        fmt.Errorf("%w: checksum mismatch", compiler.ErrCorruptArtifact),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "CORRUPT_ARTIFACT",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestRouter(&fakeService{err: tt.err})
			rec := postVerify(t, handler, VerifyRequest{
				DeployedBytecode: "0x60",
				CompilerVersion:  "v0.8.28+commit.7893614a",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestHandleVerifyDiagnosticsPassThrough(t *testing.T) {
	diagnostic := "ParserError: Expected ';' but got identifier"
	handler := newTestRouter(&fakeService{
		err: fmt.Errorf("%w: %s", verifier.ErrCompilationFailed, diagnostic),
	})

	rec := postVerify(t, handler, VerifyRequest{
		DeployedBytecode: "0x60",
		CompilerVersion:  "v0.8.28+commit.7893614a",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), diagnostic)
}

func TestHandleVersions(t *testing.T) {
	handler := newTestRouter(&fakeService{versions: []string{
		"v0.8.28+commit.7893614a",
		"v0.8.27+commit.40a35a09",
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/solidity/versions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result VersionsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"v0.8.27+commit.40a35a09", "v0.8.28+commit.7893614a"}, result.Versions)
}
