package deployless

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrDeployFailed means the helper's constructor reverted inside the proxy.
	ErrDeployFailed = errors.New("deployless: helper deploy failed")

	// ErrCalldataTooLarge is raised before any network call when proxy-mode
	// input would exceed the node call-data ceiling.
	ErrCalldataTooLarge = errors.New("deployless: call data exceeds node limit, use state override")

	// ErrStateOverrideUnsupported is raised when state-override mode is
	// explicitly requested but the connected node does not support it.
	ErrStateOverrideUnsupported = errors.New("deployless: node does not support state override")
)

// Solidity error selectors.
var (
	errorSig = []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	panicSig = []byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

// Standard panic codes we can name; everything else is reported raw.
var panicReasons = map[uint64]string{
	0x00: "generic compiler panic",
	0x01: "assertion failed",
	0x11: "arithmetic overflow or underflow",
	0x12: "division or modulo by zero",
}

// PanicError is a decoded Panic(uint256) revert.
type PanicError struct {
	Code uint64
}

func (e *PanicError) Error() string {
	if r, ok := panicReasons[e.Code]; ok {
		return "panic: " + r
	}
	return fmt.Sprintf("panic: code 0x%x", e.Code)
}

// RevertError is a decoded Error(string) revert, or raw revert bytes when the
// payload could not be ABI-decoded.
type RevertError struct {
	Reason string
	Raw    []byte
}

func (e *RevertError) Error() string {
	return "revert: " + e.Reason
}

// DecodeRevert turns raw revert bytes into a human-readable reason without
// ever failing: malformed payloads come back as hex.
func DecodeRevert(raw []byte) string {
	if len(raw) == 0 {
		return "execution reverted"
	}
	if len(raw) >= 4 && bytes.Equal(raw[:4], errorSig) {
		if s, ok := decodeErrorString(raw[4:]); ok {
			return s
		}
	}
	if len(raw) >= 4 && bytes.Equal(raw[:4], panicSig) {
		pe := &PanicError{Code: new(big.Int).SetBytes(raw[4:]).Uint64()}
		return pe.Error()
	}
	return "0x" + hex.EncodeToString(raw)
}

// classifyRevert maps raw revert bytes onto the closed error set.
func classifyRevert(raw []byte) error {
	if len(raw) >= 4 && bytes.Equal(raw[:4], panicSig) {
		code := new(big.Int).SetBytes(raw[4:])
		return &PanicError{Code: code.Uint64()}
	}
	if len(raw) >= 4 && bytes.Equal(raw[:4], errorSig) {
		if s, ok := decodeErrorString(raw[4:]); ok {
			return &RevertError{Reason: s, Raw: raw}
		}
	}
	return &RevertError{Reason: "0x" + hex.EncodeToString(raw), Raw: raw}
}

// decodeErrorString hand-decodes abi.encode(string): offset, length, bytes.
// Returns false on any malformed layout instead of erroring.
func decodeErrorString(payload []byte) (string, bool) {
	if len(payload) < 64 {
		return "", false
	}
	off := new(big.Int).SetBytes(payload[:32])
	if !off.IsInt64() || off.Int64() != 32 {
		return "", false
	}
	n := new(big.Int).SetBytes(payload[32:64])
	if !n.IsInt64() {
		return "", false
	}
	ln := int(n.Int64())
	if ln < 0 || 64+ln > len(payload) {
		return "", false
	}
	return string(payload[64 : 64+ln]), true
}

// normalizeCallError strips provider-specific error envelopes down to the raw
// revert bytes, then classifies them. Anything that carries no revert payload
// is passed through wrapped.
func normalizeCallError(err error) error {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok && strings.HasPrefix(s, "0x") {
			return classifyRevert(common.FromHex(s))
		}
	}
	// Some providers stuff the hex payload into the message itself.
	msg := err.Error()
	if i := strings.Index(msg, "0x"); i >= 0 && strings.Contains(strings.ToLower(msg), "revert") {
		if b := common.FromHex(strings.Fields(msg[i:])[0]); len(b) >= 4 {
			return classifyRevert(b)
		}
	}
	if strings.Contains(strings.ToLower(msg), "execution reverted") {
		return &RevertError{Reason: msg}
	}
	return fmt.Errorf("deployless call: %w", err)
}
