package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Input is the compiler's standard JSON input.
type Input struct {
	Language string            `json:"language"`
	Sources  map[string]Source `json:"sources"`
	Settings Settings          `json:"settings"`
}

// Source is a single source file's content.
type Source struct {
	Content string `json:"content"`
}

// Settings is the standard JSON settings block.
type Settings struct {
	Optimizer       OptimizerSettings              `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	Libraries       map[string]map[string]string   `json:"libraries,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

// OptimizerSettings leaves both fields as pointers so verification input can
// keep the optimizer entirely unset rather than explicitly disabled.
type OptimizerSettings struct {
	Enabled *bool `json:"enabled,omitempty"`
	Runs    *int  `json:"runs,omitempty"`
}

// Output is the compiler's standard JSON output, trimmed to the fields
// verification consumes. Contracts is keyed by source path, then by contract
// name.
type Output struct {
	Contracts map[string]map[string]Contract `json:"contracts"`
	Errors    []OutputError                  `json:"errors"`
}

// Contract is a single emitted contract's artifacts.
type Contract struct {
	ABI json.RawMessage `json:"abi"`
	EVM ContractEVM     `json:"evm"`
}

// ContractEVM holds the emitted bytecode objects.
type ContractEVM struct {
	Bytecode         BytecodeObject `json:"bytecode"`
	DeployedBytecode BytecodeObject `json:"deployedBytecode"`
}

// BytecodeObject is a hex-encoded bytecode blob.
type BytecodeObject struct {
	Object string `json:"object"`
}

// OutputError is a compiler diagnostic.
type OutputError struct {
	Severity         string `json:"severity"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

// Diagnostics joins all error-severity diagnostics into the text the compiler
// itself produced, verbatim, so submitters see their own syntax errors.
func (o *Output) Diagnostics() string {
	var msgs []string
	for _, e := range o.Errors {
		if e.Severity != "error" {
			continue
		}
		msg := e.FormattedMessage
		if msg == "" {
			msg = e.Message
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "\n")
}

// HasErrors reports whether any error-severity diagnostic was emitted.
func (o *Output) HasErrors() bool {
	for _, e := range o.Errors {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// Runner executes a compiler binary over standard JSON input. Verification
// engines depend on this interface rather than on ExecRunner directly.
type Runner interface {
	Run(ctx context.Context, compilerPath string, input *Input) (*Output, error)
}

// ExecRunner runs a local compiler executable. Cancelling the context kills
// the spawned process, so a cancelled verification never leaks it.
type ExecRunner struct{}

// Run invokes compilerPath with --standard-json, feeding input on stdin.
func (ExecRunner) Run(ctx context.Context, compilerPath string, input *Input) (*Output, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding compiler input: %w", err)
	}

	cmd := exec.CommandContext(ctx, compilerPath, "--standard-json")
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The compiler rejected the invocation itself; its stderr is the
		// only diagnostic available.
		return nil, fmt.Errorf("compiler exited: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decoding compiler output: %w", err)
	}
	return &out, nil
}
