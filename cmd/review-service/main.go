// Command review-service serves the human adjudication queues: ambiguous
// match reviews and external place-id verdicts.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/atlas-maps/platform/pkg/common/config"
	"github.com/atlas-maps/platform/pkg/common/database"
	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/gpid"
	"github.com/atlas-maps/platform/pkg/match"
	"github.com/atlas-maps/platform/pkg/merge"
	"github.com/atlas-maps/platform/pkg/places"
	"github.com/atlas-maps/platform/pkg/rawstore"
	"github.com/atlas-maps/platform/pkg/review"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.Close(db)

	rawRepo := rawstore.NewRepository(db)
	goldenRepo := golden.NewRepository(db)
	reviewRepo := review.NewRepository(db)
	gpidRepo := gpid.NewRepository(db)
	for _, migrate := range []func() error{reviewRepo.Migrate, gpidRepo.Migrate} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate review tables")
		}
	}

	trust, err := merge.LoadTrustTable(cfg.TrustTiersPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load trust tiers")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PipelineTopic)
	defer producer.Close()

	merger := merge.NewService(goldenRepo, rawRepo, trust, producer)
	reviewSvc := review.NewService(reviewRepo, goldenRepo, rawRepo, merger, producer)

	matcher := match.NewMatcher(cfg.NearbyRadiusMeters, cfg.NameSimilarityThreshold, cfg.TextQuerySuffix, cfg.TextSearchMaxResults)
	placesClient := places.NewHTTPClient(cfg, database.NewRedis(cfg))
	gpidSvc := gpid.NewService(gpidRepo, goldenRepo, matcher, placesClient, producer)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	review.NewHandler(reviewSvc).Register(api)
	gpid.NewHandler(gpidSvc).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Review Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Review Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Review Service stopped")
}
