// The sweeper removes expired resource locks and lapsed settings
// delegations on a schedule. Lazy reaping during lock acquisition
// covers the window between runs; the sweeper keeps the tables from
// accumulating dead rows.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/directory"
	"github.com/casehub/accesscore/pkg/locks"
)

var (
	dbURL    = flag.String("db-url", getEnv("ACCESSCORE_POSTGRES_URL", "postgres://localhost/accesscore?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "* * * * *", "Cron schedule for expiry sweeps (default: every minute)")
	runOnce  = flag.Bool("run-once", false, "Run one sweep and exit (for testing)")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	lockManager := locks.NewManager(locks.NewStore(db), log)
	delegations := directory.NewDelegationStore(db)

	sweep := func() {
		ctx := context.Background()

		if n, err := lockManager.CleanupExpired(ctx); err != nil {
			log.WithError(err).Error("Lock sweep failed")
		} else if n > 0 {
			log.WithField("count", n).Info("Expired locks removed")
		}

		if n, err := delegations.PurgeExpired(ctx); err != nil {
			log.WithError(err).Error("Delegation purge failed")
		} else if n > 0 {
			log.WithField("count", n).Info("Expired delegations removed")
		}
	}

	if *runOnce {
		sweep()
		log.Info("Sweep completed")
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, sweep); err != nil {
		log.Fatalf("Failed to schedule sweep: %v", err)
	}

	c.Start()
	log.WithField("schedule", *schedule).Info("Sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully")
	ctx := c.Stop()
	<-ctx.Done()
	log.Info("Sweeper stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
