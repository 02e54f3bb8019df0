package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-trader/internal/api"
	"webhook-trader/internal/engine"
	"webhook-trader/internal/events"
	"webhook-trader/internal/exchange"
	"webhook-trader/internal/monitor"
	"webhook-trader/internal/notify"
	"webhook-trader/internal/order"
	"webhook-trader/internal/risk"
	"webhook-trader/pkg/config"
	"webhook-trader/pkg/instance"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	policy, err := risk.LoadPolicy(cfg.RiskPolicyPath)
	if err != nil {
		log.Fatalf("risk policy load failed: %v", err)
	}

	instanceID, err := instance.ID()
	if err != nil {
		log.Printf("instance id unavailable: %v", err)
		instanceID = "unknown"
	}
	mode := "LIVE"
	if cfg.DryRun {
		mode = "DRY_RUN"
	}
	log.Printf("starting webhook-trader %s mode=%s instance=%s port=%s",
		buildVersion, mode, instanceID, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	var client exchange.Client
	if cfg.DryRun {
		client = exchange.NewPaper(1000)
		log.Println("dry run enabled, using simulated venue")
	} else {
		client = exchange.NewWazirx(exchange.WazirxConfig{
			APIKey:    cfg.WazirxAPIKey,
			APISecret: cfg.WazirxAPISecret,
			Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		})
		// Startup probe: a venue we cannot reach is a config problem,
		// not something to discover on the first signal.
		probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
		if _, err := client.FetchBalance(probeCtx); err != nil {
			probeCancel()
			log.Fatalf("venue probe failed: %v", err)
		}
		probeCancel()
		log.Println("venue probe ok")
	}

	store := order.NewStore()
	ledger := risk.NewLedger(policy.Location())
	gate := risk.NewGate(policy, ledger, client, store.Len)
	sizer := risk.NewSizer(policy)
	eng := engine.New(policy, gate, sizer, client, store, ledger, bus, cfg.DryRun)

	if cfg.TelegramEnabled {
		notifier := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, bus)
		notifier.Start()
		defer notifier.Stop()
		notifier.Announce("🤖 webhook-trader " + buildVersion + " started in " + mode + " mode")
		log.Println("telegram notifications enabled")
	}

	mon := monitor.New(policy, client, store, ledger, bus)
	mon.Start(ctx)

	server := api.NewServer(eng, bus, api.SystemMeta{
		DryRun:     cfg.DryRun,
		Venue:      "wazirx",
		InstanceID: instanceID,
		Version:    buildVersion,
	}, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down, waiting for in-flight sweep")
	cancel()
	mon.Stop()
	log.Println("bye")
}
