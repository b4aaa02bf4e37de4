package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicore/config"
	"clinicore/cron"
	"clinicore/database"
	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	scheduleRepo "clinicore/database/repository/schedule"
	userRepoPkg "clinicore/database/repository/user"
	"clinicore/database/txn"
	"clinicore/handlers"
	"clinicore/middleware"
	"clinicore/routes"
	"clinicore/services/billing"
	"clinicore/services/scheduleevents"
	"clinicore/services/user"
	"clinicore/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.Default())

	// repositories.
	billRepo := billingRepo.NewMongoBillingRepo()
	apptRepo := appointmentRepo.NewMongoAppointmentRepo()
	schedRepo := scheduleRepo.NewMongoScheduleRepo()
	patRepo := patientRepo.NewMongoPatientRepo()
	userRepo := userRepoPkg.NewMongoUserRepo()

	// transactional write coordinator, shared by every multi-document path.
	coordinator := txn.NewCoordinator(
		database.MongoClient,
		config.AppConfig.TxnMaxAttempts,
		time.Duration(config.AppConfig.TxnBaseDelayMs)*time.Millisecond,
		logger,
	)

	// projection outbox.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	})
	defer asynqClient.Close()

	// services.
	syncService := &scheduleevents.DefaultSyncService{
		Schedule:     schedRepo,
		Billing:      billRepo,
		Appointments: apptRepo,
		Patients:     patRepo,
		Txn:          coordinator,
		Outbox:       scheduleevents.NewAsynqOutbox(asynqClient),
		Logger:       logger,
	}

	billingService := &billing.DefaultBillingService{
		Repo:         billRepo,
		Appointments: apptRepo,
		Patients:     patRepo,
		Txn:          coordinator,
		Events:       syncService,
		Logger:       logger,
	}

	userService := &user.DefaultUserService{Repo: userRepo}

	// reconciliation worker.
	cron.InitSyncWorker(syncService, billRepo, apptRepo)

	// handlers.
	bundle := &routes.HandlerBundle{
		Auth:     handlers.NewAuthHandler(userService, logger),
		Billing:  handlers.NewBillingHandler(billingService, logger),
		Session:  handlers.NewSessionHandler(billingService, logger),
		Calendar: handlers.NewCalendarHandler(schedRepo, logger),
		Patient:  handlers.NewPatientHandler(patRepo, logger),
	}
	routes.RegisterRoutes(router, bundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
