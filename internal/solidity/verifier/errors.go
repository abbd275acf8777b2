package verifier

import "errors"

// Common errors returned by the verification engine. Fetch and version
// errors from the compiler manager propagate through unchanged.
var (
	// ErrInvalidRequest means the request was malformed: empty deployed
	// bytecode or an unparsable compiler version.
	ErrInvalidRequest = errors.New("invalid verification request")

	// ErrCompilationFailed means the compiler ran but reported source
	// errors. The wrapped message carries the compiler's own diagnostics
	// verbatim.
	ErrCompilationFailed = errors.New("compilation failed")

	// ErrNoMatchingContracts means compilation succeeded but no emitted
	// contract's bytecode matches the deployed bytecode at any grade.
	ErrNoMatchingContracts = errors.New("no contract matches the deployed bytecode")
)
