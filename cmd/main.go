package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/swiftdish/order-service/internal/app"
	"github.com/swiftdish/order-service/internal/billing"
	"github.com/swiftdish/order-service/internal/config"
	"github.com/swiftdish/order-service/internal/feed"
	"github.com/swiftdish/order-service/internal/handler"
	"github.com/swiftdish/order-service/internal/notify"
	"github.com/swiftdish/order-service/internal/postgres"
	"github.com/swiftdish/order-service/internal/redis"
	"github.com/swiftdish/order-service/internal/repo"
	"github.com/swiftdish/order-service/internal/service"
	"github.com/swiftdish/order-service/pkg/cache"
	"github.com/swiftdish/order-service/pkg/trm"
)

// @title           SwiftDish Order Core API
// @version         1.0
// @description     Order lifecycle, delivery assignment and notification API
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	rdb, err := redis.New(ctx, conf.Redis)
	panicIfErr("failed to connect to redis", err)
	defer rdb.Close()
	logger.Info("redis connected")

	store := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	orderCache.StartJanitor(ctx)

	publisher := feed.NewPublisher(logger, conf.Kafka, rdb)
	subscriber := feed.NewSubscriber(logger, rdb, store)

	rates := billing.Rates{
		DeliveryBase:  conf.Billing.DeliveryBase,
		DeliveryPerKM: conf.Billing.DeliveryPerKM,
		TaxRateBP:     conf.Billing.TaxRateBP,
		CommissionBP:  conf.Billing.CommissionBP,
	}

	ledger := service.NewLedger(logger, txManager, store, store, publisher, orderCache, rates, nil, nil)
	broker := service.NewBroker(logger, txManager, store, store, store, publisher, orderCache, conf.Broker)
	dispatcher := notify.NewDispatcher(logger, conf.Kafka, store, notify.LogTransport{Logger: logger})

	httpHandler := handler.NewHTTPHandler(logger, ledger, broker, dispatcher, subscriber)

	application := app.New(logger, conf)
	application.SetHttpHandlers(httpHandler)
	application.SetConsumers(dispatcher)
	application.SetRunners(broker)
	application.SetClosers(publisher)

	application.Start(ctx)
	<-ctx.Done()
	application.Stop()
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
