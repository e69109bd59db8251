package deployless

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// encodeErrorString builds abi.encode(Error(string)) by hand: selector,
// offset, length, padded bytes.
func encodeErrorString(msg string) []byte {
	out := append([]byte{}, errorSig...)
	out = append(out, common.LeftPadBytes(big.NewInt(32).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(msg))).Bytes(), 32)...)
	padded := make([]byte, (len(msg)+31)/32*32)
	copy(padded, msg)
	return append(out, padded...)
}

func encodePanic(code uint64) []byte {
	out := append([]byte{}, panicSig...)
	return append(out, common.LeftPadBytes(new(big.Int).SetUint64(code).Bytes(), 32)...)
}

func TestDecodeRevert_ErrorString(t *testing.T) {
	got := DecodeRevert(encodeErrorString("insufficient balance"))
	if got != "insufficient balance" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeRevert_Panic(t *testing.T) {
	cases := map[uint64]string{
		0x01: "panic: assertion failed",
		0x11: "panic: arithmetic overflow or underflow",
		0x12: "panic: division or modulo by zero",
		0x42: "panic: code 0x42",
	}
	for code, want := range cases {
		if got := DecodeRevert(encodePanic(code)); got != want {
			t.Fatalf("code 0x%x: got %q want %q", code, got, want)
		}
	}
}

func TestDecodeRevert_MalformedFallsBackToHex(t *testing.T) {
	// Error(string) selector with a truncated payload must not decode.
	raw := append(append([]byte{}, errorSig...), 0xde, 0xad)
	got := DecodeRevert(raw)
	if got != "0x08c379a0dead" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeRevert_Empty(t *testing.T) {
	if got := DecodeRevert(nil); got != "execution reverted" {
		t.Fatalf("got %q", got)
	}
}

func TestClassifyRevert_Types(t *testing.T) {
	err := classifyRevert(encodePanic(0x11))
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Code != 0x11 {
		t.Fatalf("expected PanicError 0x11, got %v", err)
	}

	err = classifyRevert(encodeErrorString("nope"))
	var re *RevertError
	if !errors.As(err, &re) || re.Reason != "nope" {
		t.Fatalf("expected RevertError nope, got %v", err)
	}

	err = classifyRevert([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if !errors.As(err, &re) || re.Reason != "0x0102030405" {
		t.Fatalf("expected raw-hex RevertError, got %v", err)
	}
}

// dataErr mimics the provider error envelope carrying revert bytes.
type dataErr struct {
	msg  string
	data interface{}
}

func (e *dataErr) Error() string          { return e.msg }
func (e *dataErr) ErrorData() interface{} { return e.data }

func TestNormalizeCallError_ProviderEnvelope(t *testing.T) {
	payload := "0x" + common.Bytes2Hex(encodeErrorString("out of gas"))
	err := normalizeCallError(&dataErr{msg: "execution reverted", data: payload})
	var re *RevertError
	if !errors.As(err, &re) || re.Reason != "out of gas" {
		t.Fatalf("got %v", err)
	}
}

func TestNormalizeCallError_Passthrough(t *testing.T) {
	base := errors.New("connection refused")
	err := normalizeCallError(base)
	if !errors.Is(err, base) {
		t.Fatalf("underlying error lost: %v", err)
	}
}
