package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"codeguardian/internal/advisory"
	"codeguardian/internal/auth"
	"codeguardian/internal/config"
	"codeguardian/internal/embedding"
	"codeguardian/internal/engine"
	"codeguardian/internal/events"
	"codeguardian/internal/fix"
	"codeguardian/internal/generate"
	"codeguardian/internal/jobs"
	"codeguardian/internal/rules"
	"codeguardian/internal/server"
	"codeguardian/internal/store"
	"codeguardian/internal/suggest"
	"codeguardian/types"
)

// Version is set at compile time
var Version = "dev"

func main() {
	log.Println("╔════════════════════════════════════════════════════════════════╗")
	log.Println("║          CodeGuardian - Source Vulnerability Pipeline          ║")
	log.Println("║         Detection • Suggested Remediation • Auto-Fix           ║")
	log.Println("╚════════════════════════════════════════════════════════════════╝")

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found or failed to load, using environment variables only")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Embedding backend for semantic detection and the knowledge store
	embedder := embedding.NewService(embedding.Config{
		Endpoint: cfg.Embedding.Endpoint,
		APIKey:   cfg.Embedding.APIKey,
		UseLocal: cfg.Embedding.UseLocal,
	})

	// Detection rules with hot reload
	ruleStore := rules.NewStore(cfg.RulesPath)
	ruleStore.Load()
	go func() {
		if err := ruleStore.Watch(ctx); err != nil {
			log.Printf("⚠️  Rule file watching stopped: %v", err)
		}
	}()

	// Knowledge store keeps past findings searchable; losing it is not fatal
	var knowledge *store.KnowledgeStore
	knowledgePath := filepath.Join(cfg.DataDir, "knowledge-db")
	knowledge, err := store.NewKnowledgeStore(knowledgePath, embedder)
	if err != nil {
		log.Printf("⚠️  Knowledge store unavailable, continuing without persistence: %v", err)
		knowledge = nil
	} else {
		log.Println("✅ Knowledge store initialized successfully")
	}

	// Event producer and alert monitor
	producerConfig := events.ProducerConfig{Topic: cfg.Events.Topic}
	if cfg.Events.Enable {
		producerConfig.Brokers = cfg.Events.Brokers
	}
	producer := events.NewProducer(producerConfig)

	monitor := events.NewMonitor(1000)
	for _, rule := range events.DefaultRules() {
		monitor.RegisterRule(rule)
	}
	monitor.RegisterHandler(events.LogHandler())

	// Remote advisory keyword feed
	feed := advisory.NewFeed(cfg.Advisory.URL, cfg.Advisory.UpdateInterval)

	// Optional generative fix refinement
	var fixer types.FixGenerator
	if cfg.AIProviders.EnableGenerativeFix {
		generator, err := generate.NewEngine(cfg.AIProviders)
		if err != nil {
			log.Printf("⚠️  Generative fixes unavailable, using templates only: %v", err)
		} else {
			fixer = generator
			log.Println("✅ Generative fix engine initialized successfully")
		}
	}

	suggester := suggest.NewGenerator(suggest.NewCache(), fixer)
	applicator := fix.NewApplicator()

	eng, err := engine.New(engine.Config{
		Rules:      ruleStore,
		Embedder:   embedder,
		Suggester:  suggester,
		Applicator: applicator,
		Knowledge:  knowledge,
		Producer:   producer,
		Monitor:    monitor,
		Advisory:   feed,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize engine: %v", err)
	}

	hub := server.NewHub()
	eng.SetBroadcaster(hub)

	// Batch analysis jobs
	jobManager := jobs.NewManager(eng.AnalyzeDirectory, cfg.JobWorkers)
	jobManager.OnTransition(func(job *jobs.Job) {
		hub.Broadcast("job_update", job)
	})
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				jobManager.CleanupOldJobs(24 * time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()

	authService := auth.NewService(cfg.Auth)

	eng.Start(ctx)

	srv := server.New(cfg, eng, jobManager, authService, hub)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("❌ Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("🛑 Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP shutdown error: %v", err)
	}
	if err := jobManager.Stop(); err != nil {
		log.Printf("⚠️  Job manager stop error: %v", err)
	}
	eng.Shutdown()
	log.Println("✅ Shutdown complete")
}
