package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"footballeyeq/internal/adapters/connectivity"
	emailPkg "footballeyeq/internal/adapters/email"
	web "footballeyeq/internal/adapters/http"
	"footballeyeq/internal/adapters/http/perf"
	"footballeyeq/internal/adapters/identity"
	"footballeyeq/internal/adapters/storage"
	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/orchestrators"
	"footballeyeq/internal/application/plansync"
	"footballeyeq/internal/application/workspace"
	"footballeyeq/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if !cfg.IsProduction() {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Performance instrumentation shared by the db wrapper, the HTTP timing middleware and plan writes
	collector := perf.NewCollector(perf.DefaultRingSize)

	docs, closeDocs := openDocumentStore(ctx, cfg, collector)
	defer closeDocs()

	// Seed the starter exercise catalog into an empty collection
	seeded, err := orchestrators.ExecuteSeedExercises(ctx, orchestrators.SeedExercisesDeps{Docs: docs})
	if err != nil {
		log.Fatalf("failed to seed exercises: %v", err)
	}
	if seeded > 0 {
		log.Printf("Seeded %d starter exercises", seeded)
	}

	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatalf("failed to configure token verifier: %v", err)
	}

	// Configure email sender
	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom, cfg.ReplyTo)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			log.Println("WARNING: EYEQ_RESEND_KEY is not set, welcome emails are DISABLED in production")
		} else {
			log.Println("Email sender configured (noop, set EYEQ_RESEND_KEY for real delivery)")
		}
	}

	registry := workspace.NewRegistry(workspace.Deps{
		Docs:            docs,
		SuperAdminEmail: cfg.SuperAdminEmail,
		Clock:           plansync.RealClock,
		OnPlanWrite:     collector.RecordPlanWrite,
	})
	defer registry.Close()

	// Probe the document store and fan connectivity transitions out to every workspace
	monitor := connectivity.NewMonitor(docs, connectivity.Config{Interval: cfg.ProbeInterval}, registry.SetOnline)
	stopMonitor := monitor.Start(ctx)
	defer stopMonitor()

	handler := web.NewMux(web.Config{
		CSRFKey:       cfg.CSRFKey,
		Production:    cfg.IsProduction(),
		CORSOrigins:   cfg.CORSOrigins,
		SlowRequestMs: cfg.SlowRequestMs,
	}, web.Deps{
		Registry: registry,
		Docs:     docs,
		Verifier: verifier,
		Sender:   sender,
		Perf:     collector,
		AppURL:   cfg.AppURL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	log.Printf("FootBall EyeQ %s starting on %s (env=%s)", version, cfg.Addr, cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// openDocumentStore connects to Firestore when a project is configured and
// otherwise to a local SQLite file.
func openDocumentStore(ctx context.Context, cfg config.Config, collector *perf.Collector) (document.Store, func()) {
	if cfg.FirestoreProject != "" {
		fs, err := document.OpenFirestore(ctx, cfg.FirestoreProject)
		if err != nil {
			log.Fatalf("failed to open firestore: %v", err)
		}
		log.Printf("Document store: firestore (project=%s)", cfg.FirestoreProject)
		return fs, func() { fs.Close() }
	}

	// WAL mode, busy timeout and synchronous=NORMAL for concurrent readers
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Printf("Document store: sqlite (%s)", cfg.DBPath)

	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQueryMs)
	return document.NewSQLiteStore(timedDB), func() { db.Close() }
}
