package main

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/db"
	"github.com/partsbid/matching-engine/internal/escalation"
	"github.com/partsbid/matching-engine/internal/evaluation"
	"github.com/partsbid/matching-engine/internal/events"
	"github.com/partsbid/matching-engine/internal/geo"
	"github.com/partsbid/matching-engine/internal/lock"
	"github.com/partsbid/matching-engine/internal/offers"
	"github.com/partsbid/matching-engine/internal/sweep"
)

// env wires the engines and their stores for one command invocation.
type env struct {
	pool *pgxpool.Pool
	rdb  *redis.Client

	guard      *lock.Guard
	publisher  events.Publisher
	escStore   *escalation.PostgresStore
	escalation *escalation.Engine
	evaluation *evaluation.Engine
	offers     *offers.Service
	sweeper    *sweep.Sweeper
}

func initEnv(ctx context.Context) (*env, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured")
	}

	pool, err := db.Connect(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	guard := lock.New(rdb, cfg.Lock)
	publisher := events.NewWebhookPublisher(cfg.Events)

	escStore := escalation.NewPostgresStore(pool)
	escEngine := escalation.New(
		escStore,
		escalation.NewPostgresDirectory(pool),
		escalation.NewHTTPGateway(cfg.Notify),
		geo.NewPostgresResolver(pool),
		publisher,
		cfg.Escalation,
		cfg.Notify,
	)

	evalEngine := evaluation.New(evaluation.NewPostgresStore(pool), publisher, cfg.Evaluation)

	offerSvc := offers.NewService(offers.NewPostgresStore(pool), guard)

	sweeper := sweep.New(
		sweep.NewPostgresStore(pool),
		escEngine,
		evalEngine,
		guard,
		publisher,
		len(cfg.Escalation.Tiers),
	)

	return &env{
		pool:       pool,
		rdb:        rdb,
		guard:      guard,
		publisher:  publisher,
		escStore:   escStore,
		escalation: escEngine,
		evaluation: evalEngine,
		offers:     offerSvc,
		sweeper:    sweeper,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.rdb.Close()
}
