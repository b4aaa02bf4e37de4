package cron

import (
	"context"
	"encoding/json"
	"time"

	"clinicore/config"
	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	"clinicore/models"
	"clinicore/services/scheduleevents"
	"clinicore/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

// InitSyncWorker runs the projection reconciliation worker in background:
// it drains queued syncs and periodically sweeps for source documents whose
// pending-sync marker was committed but whose inline sync never landed.
func InitSyncWorker(syncSvc scheduleevents.Service, billing billingRepo.Repository, appointments appointmentRepo.Repository) {
	logger := utils.GetLogger()

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(scheduleevents.TypeProjectionSync, handleSyncTask(syncSvc))

	go startSweep(syncSvc, billing, appointments)

	go func() {
		logger.Info("starting projection sync worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("sync worker failed to start",
					zap.Int("attempt", attempts),
					zap.Int("max_attempts", maxAttempts),
					zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("sync worker gave up after max start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleSyncTask(syncSvc scheduleevents.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p scheduleevents.SyncPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid sync task payload", zap.Error(err))
			return err
		}

		if err := syncSvc.Sync(ctx, p.OriginalID, p.Type); err != nil {
			logger.Warn("queued projection sync failed, asynq will retry",
				zap.String("original_id", p.OriginalID),
				zap.String("type", string(p.Type)),
				zap.Error(err))
			return err
		}
		return nil
	}
}

// startSweep re-projects documents left with a pending-sync marker. The
// marker is written in the same transaction as the source mutation, so this
// loop guarantees eventual consistency even when both the inline sync and
// the queue enqueue failed.
func startSweep(syncSvc scheduleevents.Service, billing billingRepo.Repository, appointments appointmentRepo.Repository) {
	logger := utils.GetLogger()
	interval := time.Duration(config.AppConfig.SyncSweepIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

		pkgs, err := billing.ListPendingSyncPackages(ctx, sweepBatchSize)
		if err != nil {
			logger.Warn("pending-sync package sweep failed", zap.Error(err))
		}
		for i := range pkgs {
			if err := syncSvc.Sync(ctx, pkgs[i].ID, models.EventPackage); err != nil {
				logger.Warn("sweep package sync failed", zap.String("package_id", pkgs[i].ID), zap.Error(err))
			}
		}

		sessions, err := billing.ListPendingSyncSessions(ctx, sweepBatchSize)
		if err != nil {
			logger.Warn("pending-sync session sweep failed", zap.Error(err))
		}
		for i := range sessions {
			if err := syncSvc.Sync(ctx, sessions[i].ID, models.EventSession); err != nil {
				logger.Warn("sweep session sync failed", zap.String("session_id", sessions[i].ID), zap.Error(err))
			}
		}

		appts, err := appointments.ListPendingSync(ctx, sweepBatchSize)
		if err != nil {
			logger.Warn("pending-sync appointment sweep failed", zap.Error(err))
		}
		for i := range appts {
			if err := syncSvc.Sync(ctx, appts[i].ID, models.EventAppointment); err != nil {
				logger.Warn("sweep appointment sync failed", zap.String("appointment_id", appts[i].ID), zap.Error(err))
			}
		}

		cancel()
	}
}
