package backtest

import (
	"math"
	"math/rand"
	"testing"
)

func TestRunTradeCount(t *testing.T) {
	sim := NewWithSource(rand.NewSource(42))
	res, err := sim.Run(Request{
		Strategy:        "mean_reversion",
		Days:            10,
		TradesPerDay:    4,
		StartingBalance: 10000,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := len(res.Trades); got != 40 {
		t.Errorf("trade count = %d, want 40", got)
	}
	if got := len(res.EquityCurve); got != 41 {
		t.Errorf("equity curve length = %d, want 41", got)
	}
}

func TestRunDeterministicWithSeed(t *testing.T) {
	req := Request{Strategy: "cross_platform_arb", Days: 5, StartingBalance: 5000}

	a, err := NewWithSource(rand.NewSource(7)).Run(req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := NewWithSource(rand.NewSource(7)).Run(req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if a.FinalBalance != b.FinalBalance {
		t.Errorf("same seed produced different final balances: %.2f vs %.2f", a.FinalBalance, b.FinalBalance)
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("same seed produced different trade counts: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if a.Trades[i].Profit != b.Trades[i].Profit {
			t.Fatalf("trade %d differs: %.4f vs %.4f", i, a.Trades[i].Profit, b.Trades[i].Profit)
		}
	}
}

func TestRunEquityConsistency(t *testing.T) {
	sim := NewWithSource(rand.NewSource(99))
	res, err := sim.Run(Request{Strategy: "grid_trading", Days: 3, StartingBalance: 2000})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	equity := res.StartingBalance
	for i, tr := range res.Trades {
		equity += tr.Profit
		if math.Abs(tr.Equity-equity) > 1e-9 {
			t.Fatalf("trade %d equity = %.6f, want %.6f", i, tr.Equity, equity)
		}
	}
	if math.Abs(res.FinalBalance-equity) > 1e-9 {
		t.Errorf("final balance = %.6f, want %.6f", res.FinalBalance, equity)
	}
}

func TestRunMarksResultSynthetic(t *testing.T) {
	sim := NewWithSource(rand.NewSource(1))
	res, err := sim.Run(Request{Strategy: "news_trading", Days: 2, StartingBalance: 1000})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Synthetic {
		t.Error("result must be flagged synthetic")
	}
	if res.Disclosure == "" {
		t.Error("result must carry the synthetic disclosure")
	}
	if res.Summary == nil {
		t.Error("result should include a metrics summary")
	}
}

func TestRunValidation(t *testing.T) {
	sim := NewWithSource(rand.NewSource(1))

	if _, err := sim.Run(Request{Strategy: "no_such_strategy", Days: 5, StartingBalance: 1000}); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if _, err := sim.Run(Request{Strategy: "mean_reversion", Days: 0, StartingBalance: 1000}); err == nil {
		t.Error("expected error for zero days")
	}
	if _, err := sim.Run(Request{Strategy: "mean_reversion", Days: 5, StartingBalance: 0}); err == nil {
		t.Error("expected error for zero balance")
	}
}

func TestRunRejectsExcessiveTradesPerDay(t *testing.T) {
	sim := NewWithSource(rand.NewSource(1))

	// Oversized requests must be rejected before the trade slice is sized
	_, err := sim.Run(Request{
		Strategy:        "mean_reversion",
		Days:            30,
		TradesPerDay:    200000,
		StartingBalance: 1000,
	})
	if err == nil {
		t.Fatal("expected error for excessive trades per day")
	}

	res, err := sim.Run(Request{
		Strategy:        "mean_reversion",
		Days:            2,
		TradesPerDay:    MaxTradesPerDay,
		StartingBalance: 1000,
	})
	if err != nil {
		t.Fatalf("Run failed at the limit: %v", err)
	}
	if got := len(res.Trades); got != 2*MaxTradesPerDay {
		t.Errorf("trade count = %d, want %d", got, 2*MaxTradesPerDay)
	}
}
