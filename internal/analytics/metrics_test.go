package analytics

import (
	"math"
	"testing"
	"time"
)

func approx(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

// fixtureTrades is a 10-trade sequence with known aggregate behavior:
// 6 wins totaling 695, 4 losses totaling 260.
func fixtureTrades() []Trade {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	profits := []float64{120, 125, -60, -50, 110, -70, 115, -80, 100, 125}
	trades := make([]Trade, len(profits))
	for i, p := range profits {
		trades[i] = Trade{
			Timestamp: base.Add(time.Duration(i) * 3 * time.Hour),
			Profit:    p,
			Size:      1000,
			Win:       p > 0,
		}
	}
	return trades
}

func TestCalculateFixture(t *testing.T) {
	s := Calculate(fixtureTrades(), 10000)
	if s == nil {
		t.Fatal("expected summary, got nil")
	}

	if s.TotalTrades != 10 {
		t.Errorf("total trades = %d, want 10", s.TotalTrades)
	}
	if s.TotalProfit != 435 {
		t.Errorf("total profit = %.2f, want 435", s.TotalProfit)
	}
	if s.WinRate != 60 {
		t.Errorf("win rate = %.2f, want 60", s.WinRate)
	}
	if !approx(s.AverageWin, 115.83, 0.01) {
		t.Errorf("average win = %.4f, want ~115.83", s.AverageWin)
	}
	if s.AverageLoss != 65 {
		t.Errorf("average loss = %.2f, want 65", s.AverageLoss)
	}
	if !approx(s.Expectancy, 43.5, 0.01) {
		t.Errorf("expectancy = %.4f, want 43.5", s.Expectancy)
	}
	if !approx(s.ProfitFactor, 2.67, 0.01) {
		t.Errorf("profit factor = %.4f, want ~2.67", s.ProfitFactor)
	}
	if s.MaxDrawdown != 110 {
		t.Errorf("max drawdown = %.2f, want 110", s.MaxDrawdown)
	}
	if !approx(s.MaxDrawdownPercent, 1.07, 0.01) {
		t.Errorf("max drawdown %% = %.4f, want ~1.07", s.MaxDrawdownPercent)
	}
	if !approx(s.ROIPercent, 4.35, 0.001) {
		t.Errorf("roi = %.4f, want 4.35", s.ROIPercent)
	}
}

func TestCalculateRMultiples(t *testing.T) {
	// Risk unit is 2% of the 1000 average size = 20.
	s := Calculate(fixtureTrades(), 10000)
	if !approx(s.TotalRMultiple, 21.75, 0.001) {
		t.Errorf("total R = %.4f, want 21.75", s.TotalRMultiple)
	}
	if !approx(s.AverageRMultiple, 2.175, 0.001) {
		t.Errorf("average R = %.4f, want 2.175", s.AverageRMultiple)
	}
}

func TestCalculateStreaks(t *testing.T) {
	s := Calculate(fixtureTrades(), 10000)
	if s.LongestWinStreak != 2 {
		t.Errorf("longest win streak = %d, want 2", s.LongestWinStreak)
	}
	if s.LongestLossStreak != 2 {
		t.Errorf("longest loss streak = %d, want 2", s.LongestLossStreak)
	}
}

func TestCalculateKelly(t *testing.T) {
	s := Calculate(fixtureTrades(), 10000)
	// b = 115.8333/65, k = 0.6 - 0.4/b
	if !approx(s.KellyPercent, 37.55, 0.01) {
		t.Errorf("kelly = %.4f, want ~37.55", s.KellyPercent)
	}
}

func TestCalculateEmpty(t *testing.T) {
	if s := Calculate(nil, 10000); s != nil {
		t.Errorf("expected nil summary for zero trades, got %+v", s)
	}
}

func TestCalculateNoLosses(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	trades := []Trade{
		{Timestamp: base, Profit: 50, Size: 500, Win: true},
		{Timestamp: base.Add(time.Hour), Profit: 75, Size: 500, Win: true},
	}
	s := Calculate(trades, 1000)
	if !math.IsInf(s.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", s.ProfitFactor)
	}
	if s.LosingTrades != 0 || s.AverageLoss != 0 {
		t.Errorf("unexpected loss stats: %d losses, avg %.2f", s.LosingTrades, s.AverageLoss)
	}
	if s.KellyPercent != 0 {
		t.Errorf("kelly with no losses = %.2f, want 0", s.KellyPercent)
	}
}

func TestCalculateZeroVariance(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	trades := []Trade{
		{Timestamp: base, Profit: 10, Size: 100, Win: true},
		{Timestamp: base.Add(time.Hour), Profit: 10, Size: 100, Win: true},
		{Timestamp: base.Add(2 * time.Hour), Profit: 10, Size: 100, Win: true},
	}
	s := Calculate(trades, 1000)
	if s.SharpeRatio != 0 {
		t.Errorf("sharpe with zero variance = %.4f, want 0", s.SharpeRatio)
	}
	if s.SortinoRatio != 0 {
		t.Errorf("sortino with no losing returns = %.4f, want 0", s.SortinoRatio)
	}
}

func TestCalculateAnnualizedBuckets(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var trades []Trade
	profits := []float64{40, -20, 55, 30, -25, 60}
	for i, p := range profits {
		trades = append(trades, Trade{
			Timestamp: base.AddDate(0, 0, i),
			Profit:    p,
			Size:      800,
			Win:       p > 0,
		})
	}
	s := Calculate(trades, 5000)
	if !s.Annualized {
		t.Fatal("expected annualized ratios with 6 daily buckets")
	}
	if s.SharpeRatio <= 0 {
		t.Errorf("expected positive sharpe, got %.4f", s.SharpeRatio)
	}
	if s.CalmarRatio <= 0 {
		t.Errorf("expected positive calmar, got %.4f", s.CalmarRatio)
	}

	// Under 5 buckets the ratios fall back to raw per-trade values.
	s2 := Calculate(fixtureTrades(), 10000)
	if s2.Annualized {
		t.Error("10 trades across 2 days should not be annualized")
	}
}
