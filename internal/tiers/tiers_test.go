package tiers

import "testing"

func TestCanEnableStrategy(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		strategy string
		want     bool
	}{
		{"free cannot enable whale copy trading", TierFree, "enable_whale_copy_trading", false},
		{"pro cannot enable whale copy trading", TierPro, "enable_whale_copy_trading", false},
		{"elite can enable whale copy trading", TierElite, "enable_whale_copy_trading", true},
		{"free can enable momentum", TierFree, "enable_polymarket_momentum", true},
		{"free cannot enable arb", TierFree, "enable_cross_platform_arb", false},
		{"pro can enable arb", TierPro, "enable_cross_platform_arb", true},
		{"unknown flag requires elite", TierPro, "enable_quantum_arbitrage", false},
		{"elite can enable unknown flag", TierElite, "enable_quantum_arbitrage", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEnableStrategy(tt.tier, tt.strategy); got != tt.want {
				t.Errorf("CanEnableStrategy(%q, %q) = %v, want %v", tt.tier, tt.strategy, got, tt.want)
			}
		})
	}
}

func TestEliteCanEnableEverything(t *testing.T) {
	for flag := range StrategyFlags() {
		if !CanEnableStrategy(TierElite, flag) {
			t.Errorf("elite should be able to enable %q", flag)
		}
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast(TierElite, TierFree) {
		t.Error("elite should satisfy free requirement")
	}
	if !AtLeast(TierPro, TierPro) {
		t.Error("pro should satisfy pro requirement")
	}
	if AtLeast(TierFree, TierPro) {
		t.Error("free should not satisfy pro requirement")
	}
	if AtLeast(Tier("unknown"), TierPro) {
		t.Error("unknown tier should not satisfy pro requirement")
	}
}

func TestCanUseFeature(t *testing.T) {
	if !CanUseFeature(TierFree, "paper_trading") {
		t.Error("free tier should include paper trading")
	}
	if CanUseFeature(TierFree, "live_trading") {
		t.Error("free tier should not include live trading")
	}
	if !CanUseFeature(TierPro, "live_trading") {
		t.Error("pro tier should include live trading")
	}
	if CanUseFeature(TierPro, "undocumented_feature") {
		t.Error("unknown features should require elite")
	}
}

func TestGetConfigFallsBackToFree(t *testing.T) {
	cfg := GetConfig(Tier("nonsense"))
	if cfg.Name != "Free" {
		t.Errorf("expected free config fallback, got %q", cfg.Name)
	}
}
