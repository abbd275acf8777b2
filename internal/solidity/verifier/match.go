package verifier

import (
	"bytes"
	"encoding/binary"
)

// Match grades a bytecode comparison.
type Match string

const (
	// MatchFull means the compiled bytecode is byte-identical to the
	// deployed bytecode.
	MatchFull Match = "full"
	// MatchPartial means the bytecode is identical outside the trailing
	// metadata-hash region, which legitimately differs across
	// otherwise-identical builds (absolute paths, build environment).
	MatchPartial Match = "partial"
	// matchNone is internal; a no-match never leaves the engine as a grade.
	matchNone Match = ""
)

// betterThan orders grades: full > partial > none.
func (m Match) betterThan(other Match) bool {
	rank := map[Match]int{MatchFull: 2, MatchPartial: 1, matchNone: 0}
	return rank[m] > rank[other]
}

// splitMetadata locates the CBOR-encoded metadata suffix the compiler embeds
// and returns the executable part and the full suffix (metadata plus its
// two-byte length). The last two bytes of the bytecode encode the metadata
// length big-endian, so the region is found deterministically regardless of
// encoding version; a prefix-only comparison would misjudge builds whose
// metadata lengths differ.
func splitMetadata(code []byte) (executable, metadata []byte) {
	if len(code) < 2 {
		return code, nil
	}
	metaLen := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	cut := len(code) - 2 - metaLen
	if metaLen == 0 || cut < 0 {
		return code, nil
	}
	// The suffix is a CBOR map; its first byte carries major type 5.
	if code[cut]>>5 != 5 {
		return code, nil
	}
	return code[:cut], code[cut:]
}

// matchDeployed grades compiled runtime bytecode against the deployed
// bytecode.
func matchDeployed(compiled, deployed []byte) Match {
	if bytes.Equal(compiled, deployed) {
		return MatchFull
	}
	compiledCode, compiledMeta := splitMetadata(compiled)
	deployedCode, deployedMeta := splitMetadata(deployed)
	if compiledMeta != nil && deployedMeta != nil && bytes.Equal(compiledCode, deployedCode) {
		return MatchPartial
	}
	return matchNone
}

// matchCreation checks the on-chain creation input against the compiled
// creation bytecode. The non-metadata prefix must match exactly; the metadata
// region is tolerated; anything beyond the compiled length is the ABI-encoded
// constructor arguments, returned rather than matched.
func matchCreation(compiled, onchain []byte) (args []byte, ok bool) {
	if len(onchain) < len(compiled) {
		return nil, false
	}
	executable, _ := splitMetadata(compiled)
	if !bytes.Equal(onchain[:len(executable)], executable) {
		return nil, false
	}
	return onchain[len(compiled):], true
}
