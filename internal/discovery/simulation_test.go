package discovery

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

func op(nonce int64) SimulationOp {
	return SimulationOp{Nonce: big.NewInt(nonce), Calls: []Call{{}}}
}

func TestCheckSimulation(t *testing.T) {
	cases := []struct {
		name    string
		before  int64
		after   int64
		ops     []SimulationOp
		rawErr  []byte
		wantMsg string // empty means no error
	}{
		{name: "no ops, nonce unchanged", before: 7, after: 7, wantMsg: ""},
		{name: "single op consumed", before: 7, after: 8, ops: []SimulationOp{op(7)}, wantMsg: ""},
		{name: "helper revert payload", before: 7, after: 8, rawErr: []byte{0x01, 0x02}, wantMsg: "0x0102"},
		{name: "after zero means revert", before: 7, after: 0, wantMsg: "simulated execution reverted"},
		{name: "nonce went backwards", before: 7, after: 3, wantMsg: "nonce moved backwards"},
		{name: "wrong nonce supplied", before: 7, after: 7, ops: []SimulationOp{op(7)}, wantMsg: "nonce did not increment"},
		{name: "trailing ops skipped", before: 7, after: 8, ops: []SimulationOp{op(7), op(8), op(9)}, wantMsg: "trailing operations were skipped"},
		{name: "all ops consumed", before: 7, after: 10, ops: []SimulationOp{op(7), op(8), op(9)}, wantMsg: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSimulation(big.NewInt(tc.before), big.NewInt(tc.after), tc.ops, tc.rawErr)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var se *SimulationError
			if !errors.As(err, &se) {
				t.Fatalf("expected SimulationError, got %v", err)
			}
			if !strings.Contains(se.Msg, tc.wantMsg) {
				t.Fatalf("msg %q does not mention %q", se.Msg, tc.wantMsg)
			}
		})
	}
}

func TestStartNonce(t *testing.T) {
	if got := startNonce(SmartAccount, big.NewInt(12)); got.Int64() != 12 {
		t.Fatalf("smart account must continue from chain nonce, got %v", got)
	}
	if got := startNonce(SmartAccount, nil); got.Sign() != 0 {
		t.Fatalf("missing chain nonce defaults to zero, got %v", got)
	}
	if got := startNonce(ExternallyOwned, big.NewInt(12)); got.Cmp(eoaSimulationNonce) != 0 {
		t.Fatalf("EOA must use the sentinel nonce, got %v", got)
	}
}

func TestSentinelNonceIsUnreachable(t *testing.T) {
	// 2^240 sits far above any nonce a live account can reach.
	if eoaSimulationNonce.BitLen() != 241 {
		t.Fatalf("sentinel drifted: bitlen %d", eoaSimulationNonce.BitLen())
	}
}
