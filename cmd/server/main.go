package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/config"
	"github.com/iliyamo/mensa-reservation/internal/database"
	"github.com/iliyamo/mensa-reservation/internal/handler"
	"github.com/iliyamo/mensa-reservation/internal/lock"
	"github.com/iliyamo/mensa-reservation/internal/logger"
	"github.com/iliyamo/mensa-reservation/internal/mail"
	"github.com/iliyamo/mensa-reservation/internal/middleware"
	"github.com/iliyamo/mensa-reservation/internal/payment"
	"github.com/iliyamo/mensa-reservation/internal/queue"
	"github.com/iliyamo/mensa-reservation/internal/repository"
	"github.com/iliyamo/mensa-reservation/internal/router"
	"github.com/iliyamo/mensa-reservation/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("schema setup failed")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable: response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	menus := repository.NewMenuRepo(db)
	reservations := repository.NewReservationRepo(db)
	transactions := repository.NewTransactionRepo(db)

	publisher := queue.NewPublisher(queue.AMQPBroker{URL: cfg.AMQPURL}, log, cfg.Payment.Currency)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if cfg.NotifyConsumer {
		consumer := queue.NewConsumer(cfg.AMQPURL, mail.NewSMTPSender(cfg.Mail), log)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("notification consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	catalog := service.NewCatalog(menus, cfg.Mensa.Location, log)
	catalog.OnChange(cache.Purge)

	ledger := service.NewLedger(menus, reservations, users, newLocker(cfg, rdb, log), publisher, service.LedgerConfig{
		Slots:    cfg.Mensa.PickupSlots,
		Capacity: cfg.Mensa.SlotCapacity,
		Location: cfg.Mensa.Location,
	}, log)
	recorder := service.NewRecorder(reservations, menus, users, transactions, newGateway(cfg, log), publisher,
		cfg.Payment.Currency, cfg.Payment.Timeout, log)
	accounts := service.NewAccounts(users, tokens, publisher, service.AccountsConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		ResetTTL:       time.Duration(cfg.ResetTTLMin) * time.Minute,
		BcryptCost:     cfg.BcryptCost,
	}, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: func() string { return uuid.NewString() }}))
	e.Use(echomw.Recover())
	e.Use(logger.Requests(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(accounts, log), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(catalog, ledger, log), cache.Middleware())
	router.RegisterCustomer(e, handler.NewCustomerHandler(ledger, recorder, log), cfg.JWTSecret)
	router.RegisterManager(e, handler.NewManagerHandler(catalog, ledger, log), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	// let queued notifications reach the broker before the consumer goes
	publisher.Wait()
	stopConsumer()
	<-consumerDone
}

func newLocker(cfg config.Config, rdb *redis.Client, log *logrus.Logger) lock.Locker {
	if cfg.LockBackend == "redis" {
		if rdb != nil {
			return lock.NewRedis(rdb, "mensa:lock", 10*time.Second, log)
		}
		log.Warn("LOCK_BACKEND=redis but redis is unreachable, using in-process lock")
	}
	return lock.NewLocal()
}

func newGateway(cfg config.Config, log *logrus.Logger) payment.Gateway {
	if cfg.Payment.ClientID == "" {
		log.Warn("PAYPAL_CLIENT_ID not set, using the sandbox payment gateway")
		return payment.NewSandbox()
	}
	gw, err := payment.NewPayPal(cfg.Payment.ClientID, cfg.Payment.ClientSecret, payment.APIBase(cfg.Payment.Mode), cfg.Payment.Timeout)
	if err != nil {
		log.WithError(err).Fatal("payment gateway setup failed")
	}
	return gw
}
