package discovery

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func TestOracleABIsParse(t *testing.T) {
	for name, raw := range map[string]string{
		"balance": balanceGetterABI,
		"nft":     nftGetterABI,
	} {
		parsed, err := abi.JSON(strings.NewReader(raw))
		if err != nil {
			t.Fatalf("%s abi: %v", name, err)
		}
		if len(parsed.Methods) != 2 {
			t.Fatalf("%s abi: expected 2 methods, got %d", name, len(parsed.Methods))
		}
	}
}

// The creation blobs carry their runtime size in the constructor's codecopy
// push; a mismatch means a truncated or mispatched constant.
func TestOracleBytecodeSelfConsistent(t *testing.T) {
	for name, blob := range map[string]string{
		"balanceGetterCode": balanceGetterCode,
		"nftGetterCode":     nftGetterCode,
	} {
		code := common.FromHex(blob)
		const ctorLen = 32
		if len(code) <= ctorLen {
			t.Fatalf("%s: too short (%d bytes)", name, len(code))
		}
		// Constructor layout: ...5b50 61<len> 80 610020 600039 6000 f3 fe
		if code[18] != 0x61 {
			t.Fatalf("%s: no push2 at the runtime-length slot", name)
		}
		claimed := int(code[19])<<8 | int(code[20])
		runtime := len(code) - ctorLen
		if claimed != runtime {
			t.Fatalf("%s: constructor claims %d runtime bytes, blob carries %d", name, claimed, runtime)
		}
	}
}
