package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/scheduling-engine/internal/appointment"
	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/config"
	"github.com/clinicdesk/scheduling-engine/internal/db"
	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
	"github.com/clinicdesk/scheduling-engine/internal/logging"
	redisclient "github.com/clinicdesk/scheduling-engine/internal/redis"
	"github.com/clinicdesk/scheduling-engine/internal/waitlist"
)

// The lifecycle worker runs two periodic passes: expire waitlist entries whose
// confirmation window lapsed (promoting the next candidate for each freed
// slot), and mark ended pending/confirmed appointments as no-shows.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("lifecycle-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	bus := eventbus.NewBus(eventbus.NewPgStore(pgPool), log)

	availRepo := availability.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	apptSvc := appointment.NewService(apptRepo, availRepo, appointment.DefaultKinds(), locker, bus, log)

	wlSvc := waitlist.NewService(waitlist.NewPgRepository(pgPool), bus, log)

	runOnce(rootCtx, log, cfg, apptSvc, wlSvc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping lifecycle worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, log, cfg, apptSvc, wlSvc)
		}
	}
}

func runOnce(ctx context.Context, log *zap.Logger, cfg config.Config, apptSvc *appointment.Service, wlSvc *waitlist.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	expired, err := wlSvc.ExpireOverdue(runCtx, cfg.WaitlistConfirmTTL)
	if err != nil {
		log.Error("waitlist expiry run error", zap.Error(err))
	}

	noShows, err := apptSvc.MarkNoShows(runCtx, cfg.NoShowGrace)
	if err != nil {
		log.Error("no-show run error", zap.Error(err))
	}

	log.Info("lifecycle run complete",
		zap.Int("waitlist_expired", expired),
		zap.Int("no_shows_marked", noShows),
		zap.Duration("took", time.Since(start)),
	)
}
