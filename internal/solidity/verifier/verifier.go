package verifier

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
)

// CompilerProvider resolves a compiler version to an executable path. The
// compiler manager satisfies this; tests substitute a stub.
type CompilerProvider interface {
	CompilerFor(ctx context.Context, v compiler.Version) (string, error)
}

// Success is the result of a verified contract: the contract the compiler
// emitted whose bytecode matches what is deployed.
type Success struct {
	// FilePath and ContractName identify the matched contract within the
	// submitted sources.
	FilePath     string
	ContractName string
	// CompilerVersion is the resolved version the sources were compiled with.
	CompilerVersion compiler.Version
	// Match is the grade of the deployed-bytecode comparison.
	Match Match
	// Bytecode is the compiled (not deployed) runtime bytecode.
	Bytecode []byte
	// ABI is the contract's ABI as emitted by the compiler.
	ABI json.RawMessage
	// ConstructorArgs is the trailing remainder of the creation input beyond
	// the compiled creation bytecode. Empty unless creation bytecode was
	// supplied and carried arguments.
	ConstructorArgs []byte
}

// ContractVerifier matches one deployed contract against compiler output.
type ContractVerifier struct {
	compilers CompilerProvider
	runner    compiler.Runner
	version   compiler.Version
	creation  []byte
	deployed  []byte
	chainID   string
}

// New validates the request and builds a verifier. chainID is carried for
// observability only and never affects matching.
func New(compilers CompilerProvider, runner compiler.Runner, versionStr string, creation, deployed []byte, chainID string) (*ContractVerifier, error) {
	v, err := compiler.ParseVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(deployed) == 0 {
		return nil, fmt.Errorf("%w: deployed bytecode is empty", ErrInvalidRequest)
	}
	return &ContractVerifier{
		compilers: compilers,
		runner:    runner,
		version:   v,
		creation:  creation,
		deployed:  deployed,
		chainID:   chainID,
	}, nil
}

// candidate is one emitted contract under consideration.
type candidate struct {
	filePath string
	name     string
	contract compiler.Contract
}

// Verify compiles the input and returns the best-matching contract.
func (cv *ContractVerifier) Verify(ctx context.Context, input *SourceInput) (*Success, error) {
	path, err := cv.compilers.CompilerFor(ctx, cv.version)
	if err != nil {
		return nil, err
	}

	out, err := cv.runner.Run(ctx, path, input.CompilerInput())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompilationFailed, err)
	}
	if out.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrCompilationFailed, out.Diagnostics())
	}

	best, grade, args := cv.pickMatch(out)
	if best == nil {
		return nil, ErrNoMatchingContracts
	}

	bytecode, err := decodeBytecode(best.contract.EVM.DeployedBytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("decoding matched bytecode: %w", err)
	}

	return &Success{
		FilePath:        best.filePath,
		ContractName:    best.name,
		CompilerVersion: cv.version,
		Match:           grade,
		Bytecode:        bytecode,
		ABI:             best.contract.ABI,
		ConstructorArgs: args,
	}, nil
}

// pickMatch grades every emitted contract and returns the best one. Full
// beats partial; among equal grades the first contract in lexicographic
// (source path, contract name) order wins, a deterministic stand-in for
// declaration order that does not depend on map iteration.
func (cv *ContractVerifier) pickMatch(out *compiler.Output) (*candidate, Match, []byte) {
	candidates := sortedCandidates(out)

	var (
		best      *candidate
		bestGrade = matchNone
		bestArgs  []byte
	)
	for i := range candidates {
		c := &candidates[i]
		runtime, err := decodeBytecode(c.contract.EVM.DeployedBytecode.Object)
		if err != nil || len(runtime) == 0 {
			continue // interfaces and abstract contracts emit no bytecode
		}

		grade := matchDeployed(runtime, cv.deployed)
		if grade == matchNone || !grade.betterThan(bestGrade) {
			continue
		}

		var args []byte
		if len(cv.creation) > 0 {
			creation, err := decodeBytecode(c.contract.EVM.Bytecode.Object)
			if err != nil {
				continue
			}
			var ok bool
			if args, ok = matchCreation(creation, cv.creation); !ok {
				continue
			}
		}

		best, bestGrade, bestArgs = c, grade, args
		if bestGrade == MatchFull {
			break
		}
	}
	return best, bestGrade, bestArgs
}

// sortedCandidates flattens compiler output into deterministic order.
func sortedCandidates(out *compiler.Output) []candidate {
	var candidates []candidate
	for filePath, contracts := range out.Contracts {
		for name, contract := range contracts {
			candidates = append(candidates, candidate{filePath: filePath, name: name, contract: contract})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].filePath != candidates[j].filePath {
			return candidates[i].filePath < candidates[j].filePath
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates
}

// decodeBytecode decodes a hex bytecode object, tolerating a 0x prefix.
func decodeBytecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
