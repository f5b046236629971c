package backtest

import (
	"fmt"
	"math/rand"
	"time"

	"polybot-server/internal/analytics"
)

// SyntheticDisclosure is attached to every result so consumers cannot
// mistake simulated output for historical performance.
const SyntheticDisclosure = "Results are generated from randomized draws against assumed win rates, not from historical market data."

// StrategyProfile holds the assumed statistical behavior of a strategy.
type StrategyProfile struct {
	WinRate      float64 `json:"win_rate"` // Probability a trade wins, 0..1
	AvgWin       float64 `json:"avg_win"`  // Mean win in quote currency
	AvgLoss      float64 `json:"avg_loss"` // Mean loss (positive)
	AvgSize      float64 `json:"avg_size"` // Mean position size
	TradesPerDay int     `json:"trades_per_day"`
}

// MaxTradesPerDay bounds the per-day trade count a request may ask for.
// The trade slice is sized days * tradesPerDay up front, so an unbounded
// value would let one request allocate millions of trades.
const MaxTradesPerDay = 50

// Profiles is the static per-strategy assumption table the simulator
// draws from.
var Profiles = map[string]StrategyProfile{
	"polymarket_momentum": {WinRate: 0.58, AvgWin: 42, AvgLoss: 35, AvgSize: 500, TradesPerDay: 6},
	"kalshi_momentum":     {WinRate: 0.56, AvgWin: 38, AvgLoss: 33, AvgSize: 400, TradesPerDay: 5},
	"mean_reversion":      {WinRate: 0.62, AvgWin: 28, AvgLoss: 30, AvgSize: 450, TradesPerDay: 8},
	"cross_platform_arb":  {WinRate: 0.71, AvgWin: 18, AvgLoss: 22, AvgSize: 700, TradesPerDay: 10},
	"news_trading":        {WinRate: 0.52, AvgWin: 65, AvgLoss: 40, AvgSize: 600, TradesPerDay: 3},
	"grid_trading":        {WinRate: 0.66, AvgWin: 15, AvgLoss: 20, AvgSize: 350, TradesPerDay: 14},
	"whale_copy_trading":  {WinRate: 0.60, AvgWin: 55, AvgLoss: 45, AvgSize: 900, TradesPerDay: 4},
	"market_making":       {WinRate: 0.68, AvgWin: 12, AvgLoss: 16, AvgSize: 800, TradesPerDay: 20},
	"hyperliquid_perps":   {WinRate: 0.54, AvgWin: 70, AvgLoss: 50, AvgSize: 1000, TradesPerDay: 5},
}

// Request parameterizes a simulation run.
type Request struct {
	Strategy        string  `json:"strategy"`
	Days            int     `json:"days"`
	TradesPerDay    int     `json:"trades_per_day"` // 0 uses the profile default
	StartingBalance float64 `json:"starting_balance"`
}

// SimTrade is one synthetic trade in the generated sequence.
type SimTrade struct {
	Timestamp time.Time `json:"timestamp"`
	Profit    float64   `json:"profit"`
	Size      float64   `json:"size"`
	Win       bool      `json:"win"`
	Equity    float64   `json:"equity"` // Balance after this trade
}

// Result is the outcome of a simulation run.
type Result struct {
	Strategy        string             `json:"strategy"`
	Days            int                `json:"days"`
	StartingBalance float64            `json:"starting_balance"`
	FinalBalance    float64            `json:"final_balance"`
	Trades          []SimTrade         `json:"trades"`
	EquityCurve     []float64          `json:"equity_curve"`
	Summary         *analytics.Summary `json:"summary"`
	Synthetic       bool               `json:"synthetic"`
	Disclosure      string             `json:"disclosure"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// Simulator generates synthetic trade sequences from strategy profiles.
type Simulator struct {
	rng *rand.Rand
}

// New creates a simulator seeded from the current time.
func New() *Simulator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates a simulator with an explicit source, which makes
// runs reproducible.
func NewWithSource(src rand.Source) *Simulator {
	return &Simulator{rng: rand.New(src)}
}

// Run executes a simulation. The trade count is days * tradesPerDay and
// each trade wins when a uniform draw lands under the profile win rate.
func (s *Simulator) Run(req Request) (*Result, error) {
	profile, ok := Profiles[req.Strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", req.Strategy)
	}
	if req.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", req.Days)
	}
	if req.StartingBalance <= 0 {
		return nil, fmt.Errorf("starting balance must be positive, got %.2f", req.StartingBalance)
	}
	if req.TradesPerDay > MaxTradesPerDay {
		return nil, fmt.Errorf("trades per day must be at most %d, got %d", MaxTradesPerDay, req.TradesPerDay)
	}

	tradesPerDay := req.TradesPerDay
	if tradesPerDay <= 0 {
		tradesPerDay = profile.TradesPerDay
	}

	total := req.Days * tradesPerDay
	start := time.Now().UTC().AddDate(0, 0, -req.Days)
	spacing := 24 * time.Hour / time.Duration(tradesPerDay)

	result := &Result{
		Strategy:        req.Strategy,
		Days:            req.Days,
		StartingBalance: req.StartingBalance,
		Trades:          make([]SimTrade, 0, total),
		EquityCurve:     make([]float64, 0, total+1),
		Synthetic:       true,
		Disclosure:      SyntheticDisclosure,
		GeneratedAt:     time.Now().UTC(),
	}

	equity := req.StartingBalance
	result.EquityCurve = append(result.EquityCurve, equity)

	analyticsTrades := make([]analytics.Trade, 0, total)

	for i := 0; i < total; i++ {
		ts := start.Add(time.Duration(i) * spacing)
		win := s.rng.Float64() < profile.WinRate

		// Profit jitters +/-50% around the profile mean
		var profit float64
		if win {
			profit = profile.AvgWin * (0.5 + s.rng.Float64())
		} else {
			profit = -profile.AvgLoss * (0.5 + s.rng.Float64())
		}
		size := profile.AvgSize * (0.5 + s.rng.Float64())

		equity += profit
		result.Trades = append(result.Trades, SimTrade{
			Timestamp: ts,
			Profit:    profit,
			Size:      size,
			Win:       win,
			Equity:    equity,
		})
		result.EquityCurve = append(result.EquityCurve, equity)

		analyticsTrades = append(analyticsTrades, analytics.Trade{
			Timestamp: ts,
			Profit:    profit,
			Size:      size,
			Win:       win,
		})
	}

	result.FinalBalance = equity
	result.Summary = analytics.Calculate(analyticsTrades, req.StartingBalance)

	return result, nil
}

// Strategies lists the strategy names the simulator knows about.
func Strategies() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	return names
}
