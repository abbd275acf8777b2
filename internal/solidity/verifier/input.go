// Package verifier implements the bytecode verification engine: it drives a
// compiler over submitted sources and matches the emitted bytecode against
// what is deployed on-chain.
package verifier

import (
	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
)

// SourceInput is the submitted source mapping plus an optional EVM target.
// It is owned by the request and never mutated after construction.
type SourceInput struct {
	// Sources maps file path to file text.
	Sources map[string]string
	// EVMVersion optionally overrides the compiler's default target.
	EVMVersion string
}

// CompilerInput normalizes the sources into compiler-ready standard JSON.
// The optimizer is left unset on purpose: verification recompiles with the
// compiler's own defaults so the comparison reflects the submitted settings,
// not ours. Key order is irrelevant here since JSON object keys are emitted
// sorted.
func (s *SourceInput) CompilerInput() *compiler.Input {
	sources := make(map[string]compiler.Source, len(s.Sources))
	for path, content := range s.Sources {
		sources[path] = compiler.Source{Content: content}
	}
	return &compiler.Input{
		Language: "Solidity",
		Sources:  sources,
		Settings: compiler.Settings{
			EVMVersion: s.EVMVersion,
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode", "evm.deployedBytecode"}},
			},
		},
	}
}
