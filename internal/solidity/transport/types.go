// Package transport provides HTTP handlers for solidity verification.
package transport

import "encoding/json"

// VerifyRequest is the JSON body of a flattened-source verification request.
type VerifyRequest struct {
	// DeployedBytecode is the hex-encoded runtime bytecode observed
	// on-chain. Required.
	DeployedBytecode string `json:"deployedBytecode"`
	// CreationBytecode is the hex-encoded contract-creation input,
	// including any appended constructor arguments. Optional.
	CreationBytecode string `json:"creationBytecode,omitempty"`
	// CompilerVersion is the requested compiler release.
	CompilerVersion string `json:"compilerVersion"`
	// Sources maps file path to file content.
	Sources map[string]string `json:"sources"`
	// EVMVersion optionally overrides the compile target.
	EVMVersion string `json:"evmVersion,omitempty"`
	// ChainID is opaque and used for metrics only.
	ChainID string `json:"chainId,omitempty"`
}

// VerifyResult is the success payload.
type VerifyResult struct {
	Match                string          `json:"match"` // "full" or "partial"
	FilePath             string          `json:"filePath"`
	ContractName         string          `json:"contractName"`
	CompilerVersion      string          `json:"compilerVersion"`
	Bytecode             string          `json:"bytecode"` // hex, compiled runtime bytecode
	ABI                  json.RawMessage `json:"abi,omitempty"`
	ConstructorArguments string          `json:"constructorArguments,omitempty"` // hex
}

// VersionsResult lists the compiler versions available for verification.
type VersionsResult struct {
	Versions []string `json:"versions"`
}
