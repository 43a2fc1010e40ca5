package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"RunnerRadar/internal/collector"
	"RunnerRadar/internal/config"
	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/healthcheck"
	"RunnerRadar/internal/metrics"
	"RunnerRadar/internal/model"
	"RunnerRadar/internal/notifier"
	"RunnerRadar/internal/recorder"
	"RunnerRadar/internal/scanner"
	"RunnerRadar/internal/scheduler"
	"RunnerRadar/internal/server"
	"RunnerRadar/internal/store"
	"RunnerRadar/internal/wallet"
)

func main() {
	check := flag.Bool("check", false, "probe every Dexscreener endpoint and exit")
	once := flag.Bool("once", false, "run a single scan cycle, print the result and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	m := metrics.New()
	client := dexscreener.NewClient(dexscreener.Options{
		BaseURL:  cfg.Dexscreener.BaseURL,
		Timeout:  cfg.Dexscreener.Timeout,
		ProxyURL: cfg.Proxy,
		ListRPM:  cfg.Dexscreener.ListRPM,
		PairRPM:  cfg.Dexscreener.PairRPM,
	})
	client.OnCall = m.ObserveCall

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *check {
		rep := healthcheck.Run(ctx, client, healthcheck.Endpoints(cfg.Dexscreener.ChainID))
		rep.Write(os.Stdout)
		if !rep.OK() {
			os.Exit(1)
		}
		return
	}

	log.Println("[INFO] RunnerRadar starting...")

	sm := store.NewManager(cfg.Store.ConfigFile)
	if err := sm.LoadWarning(); err != nil {
		log.Printf("[WARN] scanner config fell back to defaults: %v", err)
	}

	col := collector.NewCollector(client, cfg.Dexscreener.ChainID)
	log.Printf("[INFO] data source: %s", col.Name())
	eng := scanner.NewEngine(cfg.Dexscreener.ChainID)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" && !*once {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Println("[INFO] Telegram not configured, notifications disabled")
	}

	sched := scheduler.NewScheduler(ctx, eng, col, sm, sender, rec, m)
	sched.Notify = cfg.Schedule.Notify
	sched.NotifyTop = cfg.Schedule.NotifyTop
	sched.Balance = func(ctx context.Context, rpcURL, w string) (float64, error) {
		if rpcURL == "" {
			rpcURL = cfg.Solana.RPCURL
		}
		return wallet.Balance(ctx, rpcURL, w)
	}

	if *once {
		res, err := sched.RunNow(ctx)
		if err != nil {
			log.Fatalf("[FATAL] scan: %v", err)
		}
		os.Stdout.WriteString(notifier.FormatScanReport(res, res.Rows, len(res.Rows)))
		if res.Status == model.StatusUnavailable {
			os.Exit(1)
		}
		return
	}

	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	srv := server.New(sched, sm, rec, m)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
			log.Printf("[ERROR] HTTP server: %v", err)
			cancel()
		}
	}()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, scanning now")
		go sched.RunNow(ctx)
	}

	log.Println("[INFO] RunnerRadar is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Println("[INFO] shutdown signal received, stopping...")
	case <-ctx.Done():
	}
	cancel()
	log.Println("[INFO] RunnerRadar stopped")
}
