package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-desk/internal/agent"
	"github.com/rxtech-lab/argo-desk/internal/config"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/marketcache"
	"github.com/rxtech-lab/argo-desk/internal/marketdata"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/pkg/desk"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// runAction is the core logic executed by the CLI command.
// It loads the configuration, opens the persistence backend, wires the desk,
// and runs the agent workers until their cycles complete or an interrupt
// arrives.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	provider := cmd.String("provider")
	function := cmd.String("function")
	symbol := cmd.String("symbol")
	interval := cmd.Duration("interval")
	cycles := cmd.Int("cycles")
	quantity := cmd.Float("quantity")

	cfg := config.EmptyConfig()

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg = loaded
	}

	if len(cfg.Agents) == 0 {
		cfg.Agents = []config.AgentConfig{{ID: "agent-1"}}
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	repo, err := repository.New(cfg.Database, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	if err := repo.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	fetchers, err := buildFetcherRegistry()
	if err != nil {
		return err
	}

	tradingDesk := desk.New(repo, fetchers, marketcache.Config{
		FetchTimeout: cfg.Cache.FetchTimeout.Std(),
		StaleIfError: cfg.Cache.StaleIfError,
		TTLOverrides: ttlOverrides(cfg.Cache.TTLOverrides),
	}, appLogger)

	agentIDs := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		agentIDs = append(agentIDs, a.ID)
	}

	runner := agent.NewRunner(tradingDesk, agent.NewMomentumAdvisor(quantity), agent.Config{
		AgentIDs:    agentIDs,
		InitialCash: decimal.NewFromFloat(cfg.Ledger.InitialCash),
		Provider:    provider,
		Function:    function,
		Symbol:      symbol,
		Interval:    interval,
		Cycles:      int(cycles),
	}, appLogger)

	appLogger.Info("desk started",
		zap.Strings("agents", agentIDs),
		zap.String("provider", provider),
		zap.String("symbol", symbol),
	)

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	appLogger.Info("desk stopped")

	return nil
}

// buildFetcherRegistry registers a fetcher for every provider whose API key
// is present in the environment.
func buildFetcherRegistry() (*marketdata.Registry, error) {
	registry := marketdata.NewRegistry()

	if key := os.Getenv("ALPHA_VANTAGE_API_KEY"); key != "" {
		fetcher, err := marketdata.NewAlphaVantageFetcher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create alpha vantage fetcher: %w", err)
		}

		registry.Register("alpha_vantage", fetcher)
	}

	if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		fetcher, err := marketdata.NewPolygonFetcher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create polygon fetcher: %w", err)
		}

		registry.Register("polygon", fetcher)
	}

	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		registry.Register("binance", marketdata.NewBinanceFetcher(key, os.Getenv("BINANCE_SECRET_KEY")))
	}

	return registry, nil
}

func ttlOverrides(overrides map[string]config.Duration) map[string]time.Duration {
	if len(overrides) == 0 {
		return nil
	}

	result := make(map[string]time.Duration, len(overrides))
	for function, d := range overrides {
		result[function] = d.Std()
	}

	return result
}

func main() {
	// Optional .env bootstrap for provider API keys.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "desk",
		Usage: "Run the multi-agent trading desk",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Market data provider (alpha_vantage, polygon, binance)",
				Value:   "polygon",
			},
			&cli.StringFlag{
				Name:  "function",
				Usage: "Provider function each cycle consults",
				Value: "aggregates",
			},
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Symbol the agents trade",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between agent cycles",
				Value: 30 * time.Second,
			},
			&cli.IntFlag{
				Name:  "cycles",
				Usage: "Number of cycles per agent (0 = run until interrupted)",
				Value: 0,
			},
			&cli.FloatFlag{
				Name:  "quantity",
				Usage: "Order size used by the built-in advisor",
				Value: 10,
			},
		},
		Action: runAction,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
