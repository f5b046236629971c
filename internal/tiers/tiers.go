package tiers

// Tier represents the user's subscription level
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// tierOrder ranks tiers for comparison. Higher = more access.
var tierOrder = map[Tier]int{
	TierFree:  0,
	TierPro:   1,
	TierElite: 2,
}

// Valid reports whether t names a known tier.
func Valid(t Tier) bool {
	_, ok := tierOrder[t]
	return ok
}

// AtLeast reports whether t grants at least the access of required.
// Unknown tiers rank below free.
func AtLeast(t, required Tier) bool {
	return tierOrder[t] >= tierOrder[required]
}

// Config defines the limits for each subscription tier
type Config struct {
	Name            string `json:"name"`
	MonthlyFeeCents int64  `json:"monthly_fee_cents"`
	MaxStrategies   int    `json:"max_strategies"`
	MaxBacktestDays int    `json:"max_backtest_days"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
	LiveTrading     bool   `json:"live_trading"`
	Priority        int    `json:"priority"`
}

// Configs defines all subscription tiers
var Configs = map[Tier]Config{
	TierFree: {
		Name:            "Free",
		MonthlyFeeCents: 0,
		MaxStrategies:   2,
		MaxBacktestDays: 30,
		RateLimitPerMin: 30,
		LiveTrading:     false,
		Priority:        1,
	},
	TierPro: {
		Name:            "Pro",
		MonthlyFeeCents: 4900, // $49
		MaxStrategies:   8,
		MaxBacktestDays: 180,
		RateLimitPerMin: 120,
		LiveTrading:     true,
		Priority:        2,
	},
	TierElite: {
		Name:            "Elite",
		MonthlyFeeCents: 19900, // $199
		MaxStrategies:   1000,  // Effectively unlimited
		MaxBacktestDays: 365,
		RateLimitPerMin: 300,
		LiveTrading:     true,
		Priority:        3,
	},
}

// GetConfig returns the configuration for a given tier
func GetConfig(tier Tier) Config {
	if config, ok := Configs[tier]; ok {
		return config
	}
	return Configs[TierFree]
}

// strategyMinTier maps strategy toggle flags to the minimum tier that
// may enable them. Flags not listed here require elite.
var strategyMinTier = map[string]Tier{
	"enable_polymarket_momentum": TierFree,
	"enable_kalshi_momentum":     TierFree,
	"enable_mean_reversion":      TierFree,
	"enable_cross_platform_arb":  TierPro,
	"enable_polymarket_arb":      TierPro,
	"enable_kalshi_arb":          TierPro,
	"enable_news_trading":        TierPro,
	"enable_grid_trading":        TierPro,
	"enable_whale_copy_trading":  TierElite,
	"enable_market_making":       TierElite,
	"enable_hyperliquid_perps":   TierElite,
}

// CanEnableStrategy reports whether the given tier may enable the named
// strategy flag. Unlisted flags require elite.
func CanEnableStrategy(tier Tier, strategy string) bool {
	required, ok := strategyMinTier[strategy]
	if !ok {
		required = TierElite
	}
	return AtLeast(tier, required)
}

// featureMinTier maps feature names to minimum tiers.
var featureMinTier = map[string]Tier{
	"paper_trading":    TierFree,
	"backtest":         TierFree,
	"analytics":        TierFree,
	"live_trading":     TierPro,
	"webhook_alerts":   TierPro,
	"multi_exchange":   TierPro,
	"priority_support": TierElite,
	"api_access":       TierElite,
}

// CanUseFeature reports whether the given tier includes the named feature.
// Unknown features require elite.
func CanUseFeature(tier Tier, feature string) bool {
	required, ok := featureMinTier[feature]
	if !ok {
		required = TierElite
	}
	return AtLeast(tier, required)
}

// StrategyFlags returns all known strategy toggle flags with the minimum
// tier each requires. Used by the dashboard to render toggles.
func StrategyFlags() map[string]Tier {
	out := make(map[string]Tier, len(strategyMinTier))
	for k, v := range strategyMinTier {
		out[k] = v
	}
	return out
}
