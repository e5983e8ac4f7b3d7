package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/config"
	"github.com/EugeneTurkin/fav-movies/internal/database"
	"github.com/EugeneTurkin/fav-movies/internal/handler"
	"github.com/EugeneTurkin/fav-movies/internal/kinopoisk"
	"github.com/EugeneTurkin/fav-movies/internal/logging"
	"github.com/EugeneTurkin/fav-movies/internal/metrics"
	"github.com/EugeneTurkin/fav-movies/internal/middleware"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/queue"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
	"github.com/EugeneTurkin/fav-movies/internal/router"
	"github.com/EugeneTurkin/fav-movies/internal/service"
	"github.com/EugeneTurkin/fav-movies/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg)
	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	if cfg.MigrateOnStart {
		if err := database.RunMigrations(cfg.DB, log); err != nil {
			return err
		}
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// Storage
	var movieStore service.MovieStore = repository.NewMovieRepo(db)
	if cfg.MovieCache.RedisEnabled && rdb != nil {
		movieStore = repository.NewCachedMovieRepo(repository.NewMovieRepo(db), rdb, log)
	}
	profiles := repository.NewProfileRepo(db)
	favoriteRepo := repository.NewFavoriteRepo(db)

	// Upstream
	httpClient := &http.Client{Timeout: cfg.Kinopoisk.Timeout}
	upstream := kinopoisk.NewClient(httpClient, cfg.Kinopoisk.BaseURL, cfg.Kinopoisk.APIKey, log)

	// Services
	hasher := utils.NewPasswordHasher(model.HashAlgorithm(cfg.PasswordAlg), cfg.BcryptCost)
	codec := utils.NewTokenCodec(cfg.JWTSecret)
	creds := service.NewCredentialStore(profiles, hasher, log)
	gate := service.NewAuthGate(codec, creds)
	movies := service.NewMovieCache(movieStore, upstream, log)
	ledger := service.NewFavoriteLedger(favoriteRepo, log)

	var events service.EventPublisher
	if cfg.Queue.Enabled {
		pub := service.NewQueuePublisher(cfg.Queue.URL, cfg.Queue.Name, log)
		defer pub.Close()
		events = pub

		if cfg.Queue.StartConsumer {
			consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.LogFile, log)
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.WithError(err).Error("favorites consumer stopped")
				}
			}()
		}
	}
	favorites := service.NewFavorites(movies, ledger, events, log)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(metrics.HTTPMiddleware())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.Register(e, router.Deps{
		Health:    handler.Health(db),
		Auth:      handler.NewAuthHandler(creds, codec),
		Movies:    handler.NewMovieHandler(favorites, movies),
		JWT:       middleware.JWTAuth(gate),
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
