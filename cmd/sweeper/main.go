// Standalone sweep runner for deployments where the gateway is scaled
// horizontally and the in-process sweeper is disabled. Run with -once
// from cron, or let it loop on SWEEP_INTERVAL.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/certlane/certlane/internal/cert"
	"github.com/certlane/certlane/internal/config"
	"github.com/certlane/certlane/internal/db"
	"github.com/certlane/certlane/internal/exam"
	"github.com/certlane/certlane/internal/notify"
	"github.com/certlane/certlane/internal/purchase"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	store := exam.NewSQLStore(dbh)
	bank := exam.NewBank(store, cfg.ExamCacheTTL)
	notifier := notify.NewEventLogNotifier(dbh)
	// Saved answers can still clear the bar on a forced expiry, so the
	// sweep issues certificates the same way a live submit does.
	issuer := cert.NewIssuer(cert.NewSQLStore(dbh), cert.WithNotifier(notifier))
	svc := exam.NewService(store, bank, purchase.NewSQLStore(dbh),
		exam.WithIssuer(issuer),
		exam.WithNotifier(notifier),
		exam.WithGrace(cfg.SubmitGraceSec),
	)

	if *once {
		n, err := svc.ExpireOverdueAttempts(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		log.Printf("swept %d overdue attempts", n)
		return
	}

	log.Printf("sweeping every %s", cfg.SweepInterval)
	exam.NewSweeper(svc, cfg.SweepInterval).Run(ctx)
}
