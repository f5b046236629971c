package analytics

import (
	"math"
	"sort"
	"time"
)

// Trade is a closed trade record used as calculator input.
type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Profit    float64   `json:"profit"` // Realized P&L, negative for losses
	Size      float64   `json:"size"`   // Position size in quote currency
	Win       bool      `json:"win"`
}

// Summary holds the computed performance metrics for a trade sequence.
type Summary struct {
	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	TotalProfit float64 `json:"total_profit"`
	ROIPercent  float64 `json:"roi_percent"`
	WinRate     float64 `json:"win_rate"` // Percent

	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"` // Absolute value
	Expectancy  float64 `json:"expectancy"`

	// ProfitFactor is +Inf when there are no losing trades but positive
	// gross profit. The API layer zeroes that case before encoding,
	// since +Inf has no JSON representation.
	ProfitFactor float64 `json:"profit_factor"`

	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"` // Of the equity peak

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	Annualized   bool    `json:"annualized"` // True when ratios use daily buckets

	KellyPercent float64 `json:"kelly_percent"`
	RiskOfRuin   float64 `json:"risk_of_ruin"`

	AverageRMultiple float64 `json:"average_r_multiple"`
	TotalRMultiple   float64 `json:"total_r_multiple"`

	LongestWinStreak  int `json:"longest_win_streak"`
	LongestLossStreak int `json:"longest_loss_streak"`
}

// minDailyBuckets is the number of distinct trading days required before
// ratios are computed on daily returns and annualized.
const minDailyBuckets = 5

// riskFraction fixes per-trade risk at 2% of the average position size
// for R-multiple calculations.
const riskFraction = 0.02

// Calculate computes a metrics summary for a time-ordered sequence of
// closed trades. Returns nil when there are no trades.
func Calculate(trades []Trade, startingBalance float64) *Summary {
	if len(trades) == 0 {
		return nil
	}

	s := &Summary{TotalTrades: len(trades)}

	var grossProfit, grossLoss, totalSize float64
	var winStreak, lossStreak int

	equity := startingBalance
	peak := startingBalance

	for _, t := range trades {
		s.TotalProfit += t.Profit
		totalSize += t.Size

		if t.Profit > 0 {
			s.WinningTrades++
			grossProfit += t.Profit
			winStreak++
			lossStreak = 0
		} else if t.Profit < 0 {
			s.LosingTrades++
			grossLoss += -t.Profit
			lossStreak++
			winStreak = 0
		} else {
			winStreak = 0
			lossStreak = 0
		}
		if winStreak > s.LongestWinStreak {
			s.LongestWinStreak = winStreak
		}
		if lossStreak > s.LongestLossStreak {
			s.LongestLossStreak = lossStreak
		}

		equity += t.Profit
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
			if peak > 0 {
				s.MaxDrawdownPercent = dd / peak * 100
			}
		}
	}

	if startingBalance > 0 {
		s.ROIPercent = s.TotalProfit / startingBalance * 100
	}
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100

	if s.WinningTrades > 0 {
		s.AverageWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = grossLoss / float64(s.LosingTrades)
	}

	winP := float64(s.WinningTrades) / float64(s.TotalTrades)
	lossP := float64(s.LosingTrades) / float64(s.TotalTrades)
	s.Expectancy = winP*s.AverageWin - lossP*s.AverageLoss

	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}

	s.SharpeRatio, s.SortinoRatio, s.Annualized = riskRatios(trades, startingBalance)
	s.CalmarRatio = calmar(s.ROIPercent, s.MaxDrawdownPercent, s.Annualized, tradingDays(trades))

	s.KellyPercent = kelly(winP, s.AverageWin, s.AverageLoss)
	s.RiskOfRuin = riskOfRuin(winP, lossP, startingBalance, totalSize/float64(s.TotalTrades))

	if risk := riskFraction * totalSize / float64(s.TotalTrades); risk > 0 {
		s.TotalRMultiple = s.TotalProfit / risk
		s.AverageRMultiple = s.TotalRMultiple / float64(s.TotalTrades)
	}

	return s
}

// riskRatios computes Sharpe and Sortino. With at least minDailyBuckets
// distinct trading days the ratios use daily returns annualized by
// sqrt(365); otherwise raw per-trade returns. Zero variance yields 0.
func riskRatios(trades []Trade, startingBalance float64) (sharpe, sortino float64, annualized bool) {
	if startingBalance <= 0 {
		return 0, 0, false
	}

	daily := dailyProfits(trades)
	var returns []float64
	if len(daily) >= minDailyBuckets {
		annualized = true
		for _, p := range daily {
			returns = append(returns, p/startingBalance)
		}
	} else {
		for _, t := range trades {
			returns = append(returns, t.Profit/startingBalance)
		}
	}

	mean := meanOf(returns)
	std := stdDev(returns, mean)
	downside := downsideDev(returns)

	factor := 1.0
	if annualized {
		factor = math.Sqrt(365)
	}
	if std > 0 {
		sharpe = mean / std * factor
	}
	if downside > 0 {
		sortino = mean / downside * factor
	}
	return sharpe, sortino, annualized
}

// calmar divides return by max drawdown. Annualized variants scale the
// observed ROI to a yearly rate over the traded period.
func calmar(roiPercent, maxDDPercent float64, annualized bool, days int) float64 {
	if maxDDPercent <= 0 {
		return 0
	}
	if annualized && days > 0 {
		return (roiPercent * 365 / float64(days)) / maxDDPercent
	}
	return roiPercent / maxDDPercent
}

// kelly computes the Kelly criterion as a percentage of capital.
func kelly(winP, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 || avgWin <= 0 {
		return 0
	}
	b := avgWin / avgLoss
	k := winP - (1-winP)/b
	return k * 100
}

// riskOfRuin estimates the probability of losing the full balance using
// the classic gambler's-ruin approximation with capital measured in
// per-trade risk units.
func riskOfRuin(winP, lossP, startingBalance, avgSize float64) float64 {
	edge := winP - lossP
	if edge <= 0 {
		return 1
	}
	riskPerTrade := riskFraction * avgSize
	if riskPerTrade <= 0 || startingBalance <= 0 {
		return 0
	}
	units := startingBalance / riskPerTrade
	ror := math.Pow((1-edge)/(1+edge), units)
	if ror > 1 {
		return 1
	}
	return ror
}

// dailyProfits buckets trade profits by calendar day (UTC), ordered.
func dailyProfits(trades []Trade) []float64 {
	buckets := make(map[string]float64)
	var keys []string
	for _, t := range trades {
		day := t.Timestamp.UTC().Format("2006-01-02")
		if _, ok := buckets[day]; !ok {
			keys = append(keys, day)
		}
		buckets[day] += t.Profit
	}
	sort.Strings(keys)
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		out = append(out, buckets[k])
	}
	return out
}

// tradingDays returns the number of calendar days spanned by the trades.
func tradingDays(trades []Trade) int {
	if len(trades) == 0 {
		return 0
	}
	first := trades[0].Timestamp
	last := trades[0].Timestamp
	for _, t := range trades[1:] {
		if t.Timestamp.Before(first) {
			first = t.Timestamp
		}
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	days := int(last.Sub(first).Hours()/24) + 1
	return days
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

// downsideDev is the standard deviation of negative returns only,
// normalized over the full sample.
func downsideDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		if x < 0 {
			sum += x * x
		}
	}
	return math.Sqrt(sum / float64(len(xs)))
}
