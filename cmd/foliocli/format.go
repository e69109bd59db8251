package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/quaylabs/chainfolio/internal/portfolio"
)

func formatUnits(v *big.Int, decimals uint8) string {
	if v == nil { return "0" }
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r := new(big.Rat).SetFrac(v, scale)
	return r.FloatString(6)
}

func printResult(res *portfolio.Result, currencies []string) {
	fmt.Println()
	fmt.Println("--- TOKENS ---")
	for _, t := range res.Tokens {
		line := fmt.Sprintf("%-8s %s  balance=%s", t.Symbol, t.Address.Hex(), formatUnits(t.Amount, t.Decimals))
		if t.AmountPostSimulation != nil && t.AmountPostSimulation.Cmp(t.Amount) != 0 {
			line += "  after-sim=" + formatUnits(t.AmountPostSimulation, t.Decimals)
		}
		for _, p := range t.Prices {
			line += fmt.Sprintf("  %s=%.4f", p.Currency, p.Value)
		}
		fmt.Println(line)
	}

	if len(res.Collections) > 0 {
		fmt.Println("--- COLLECTIONS ---")
		for _, c := range res.Collections {
			ids := make([]string, 0, len(c.IDs))
			for _, id := range c.IDs {
				ids = append(ids, id.String())
			}
			fmt.Printf("%-16s %s  items=[%s]\n", c.Name, c.Address.Hex(), strings.Join(ids, ","))
		}
	}

	if len(res.TokenErrors) > 0 {
		fmt.Println("--- ERRORS ---")
		for _, e := range res.TokenErrors {
			fmt.Printf("%s  %s\n", e.Address.Hex(), e.Reason)
		}
	}

	fmt.Println("--- TOTAL ---")
	for _, cur := range currencies {
		fmt.Printf("%s: %.2f\n", cur, res.Total[cur])
	}
	fmt.Printf("timing: discovery=%s oracle=%s price=%s\n",
		res.Timing.Discovery, res.Timing.OracleCall, res.Timing.PriceUpdate)
}
