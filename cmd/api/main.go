package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bankrest/cardtransfer/internal/config"
	"github.com/bankrest/cardtransfer/internal/email"
	"github.com/bankrest/cardtransfer/internal/handler"
	"github.com/bankrest/cardtransfer/internal/middleware"
	"github.com/bankrest/cardtransfer/internal/notifier"
	"github.com/bankrest/cardtransfer/internal/queue"
	"github.com/bankrest/cardtransfer/internal/repository"
	"github.com/bankrest/cardtransfer/internal/service"
	"github.com/bankrest/cardtransfer/internal/worker"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize Redis and queues
	rdb, err := queue.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	transferQueue := queue.New(rdb, cfg.TransferQueueName, cfg.LeaseTTL, logger)
	confirmedQueue := queue.New(rdb, cfg.ConfirmedQueueName, cfg.LeaseTTL, logger)

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewTransferService(repo, transferQueue, logger, cfg)
	h := handler.NewHandler(svc)

	// Background processing: the worker and the sweepers hold the Processor
	// capability; the HTTP layer only ever sees the Requester.
	w := worker.NewWorker(transferQueue, confirmedQueue, svc, logger)
	n := notifier.NewNotifier(confirmedQueue, repo, email.NewSender(cfg, logger), logger)

	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.WorkerPollInterval), func() {
		w.ProcessQueue(context.Background())
	})
	c.AddFunc(fmt.Sprintf("@every %s", cfg.RequeueInterval), func() {
		w.RequeueStuck(context.Background())
	})
	c.AddFunc(fmt.Sprintf("@every %s", cfg.PendingCancelInterval), func() {
		if err := svc.CancelPendingTransfers(context.Background()); err != nil {
			logger.Errorf("Exception occurred while cancelling transfers: %v", err)
		}
	})
	c.AddFunc(fmt.Sprintf("@every %s", cfg.NotifyInterval), func() {
		n.Process(context.Background())
	})
	c.Start()
	defer c.Stop()

	// Setup router
	r := mux.NewRouter()
	authRouter := r.PathPrefix("/transfers").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("", h.CreateTransfer).Methods("POST")
	authRouter.HandleFunc("/{id:[0-9]+}", h.GetTransfer).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
