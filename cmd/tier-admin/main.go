package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"polybot-server/config"
	"polybot-server/internal/database"
	"polybot-server/internal/tiers"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" PolyBot Tier Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		ConnString:      cfg.DatabaseConfig.ConnString(),
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. List users")
		fmt.Println("  2. Set user tier")
		fmt.Println("  3. Show tier catalog")
		fmt.Println("  4. Prune expired sessions")
		fmt.Println("  5. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			listUsers(repo)
		case "2":
			setUserTier(reader, repo)
		case "3":
			showTierCatalog()
		case "4":
			pruneSessions(repo)
		case "5":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func listUsers(repo *database.Repository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, err := repo.ListUsers(ctx, 100, 0)
	if err != nil {
		fmt.Printf("Failed to list users: %v\n", err)
		return
	}
	total, _ := repo.CountUsers(ctx)

	fmt.Println("\n========================================")
	fmt.Printf("  %d users (showing up to 100)\n", total)
	fmt.Println("========================================")
	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = " [admin]"
		}
		fmt.Printf("  %-36s  %-30s %-6s %s%s\n",
			u.ID, u.Email, u.SubscriptionTier, u.SubscriptionStatus, admin)
	}
}

func setUserTier(reader *bufio.Reader, repo *database.Repository) {
	fmt.Println("\n--- Set User Tier ---")
	fmt.Print("User ID: ")
	userID, _ := reader.ReadString('\n')
	userID = strings.TrimSpace(userID)
	if userID == "" {
		fmt.Println("User ID is required")
		return
	}

	fmt.Println("Tiers:")
	fmt.Println("  1. Free  (2 strategies, 30-day backtests)")
	fmt.Println("  2. Pro   (8 strategies, 180-day backtests, live trading)")
	fmt.Println("  3. Elite (unlimited strategies, 365-day backtests)")
	fmt.Print("Select tier (1-3): ")

	input, _ := reader.ReadString('\n')
	var tier tiers.Tier
	switch strings.TrimSpace(input) {
	case "1":
		tier = tiers.TierFree
	case "2":
		tier = tiers.TierPro
	case "3":
		tier = tiers.TierElite
	default:
		fmt.Println("Invalid tier")
		return
	}

	fmt.Print("Expires in days (empty for no expiry): ")
	daysInput, _ := reader.ReadString('\n')
	var expiresAt *time.Time
	if d := strings.TrimSpace(daysInput); d != "" {
		days, err := strconv.Atoi(d)
		if err != nil || days < 1 {
			fmt.Println("Invalid day count")
			return
		}
		t := time.Now().AddDate(0, 0, days)
		expiresAt = &t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.UpdateUserTier(ctx, userID, tier, database.StatusActive, expiresAt); err != nil {
		fmt.Printf("Failed to update tier: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  User:  %s\n", userID)
	fmt.Printf("  Tier:  %s\n", tier)
	if expiresAt != nil {
		fmt.Printf("  Until: %s\n", expiresAt.Format("2006-01-02"))
	}
	fmt.Println("========================================")
}

func showTierCatalog() {
	fmt.Println("\n========================================")
	fmt.Println(" Tier Catalog")
	fmt.Println("========================================")

	for _, tier := range []tiers.Tier{tiers.TierFree, tiers.TierPro, tiers.TierElite} {
		cfg := tiers.GetConfig(tier)
		fmt.Printf("\n%s\n", strings.ToUpper(string(tier)))
		fmt.Printf("  Rate limit:       %d req/min\n", cfg.RateLimitPerMin)
		fmt.Printf("  Backtest window:  %d days\n", cfg.MaxBacktestDays)
		fmt.Printf("  Max strategies:   %d\n", cfg.MaxStrategies)
		fmt.Printf("  Live trading:     %v\n", cfg.LiveTrading)
	}

	fmt.Println("\nStrategy availability:")
	for flag, minTier := range tiers.StrategyFlags() {
		fmt.Printf("  %-28s %s+\n", flag, minTier)
	}
	fmt.Println()
}

func pruneSessions(repo *database.Repository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := repo.PruneExpiredSessions(ctx)
	if err != nil {
		fmt.Printf("Failed to prune sessions: %v\n", err)
		return
	}
	fmt.Printf("Pruned %d expired sessions\n", pruned)
}
