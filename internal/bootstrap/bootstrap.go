package bootstrap

import (
	"admin-backend/internal/config"
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/observability"
	"admin-backend/internal/store"
	"context"
	"fmt"

	kafkaBroker "admin-backend/internal/broker/kafka"
	"admin-backend/internal/broker/rabbitmq"
	categoryHandler "admin-backend/internal/categories/handler"
	categoryProcessor "admin-backend/internal/categories/processor"
	"admin-backend/internal/classifier"
	playerHandler "admin-backend/internal/players/handler"
	playerProcessor "admin-backend/internal/players/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Logger     *observability.Logger
	Dispatcher *dispatcher.Dispatcher

	// Source delivers broker messages to the dispatcher.
	Source dispatcher.Source

	// Checks are reported by the readiness endpoint.
	Checks map[string]store.Pinger

	// Handlers
	CategoryHandler categoryHandler.Handler
	PlayerHandler   playerHandler.Handler

	// closers run in reverse order on Cleanup
	closers []func(ctx context.Context) error
}

// gateways groups the collection gateways of the selected store.
type gateways struct {
	categories categoryProcessor.CategoryStore
	players    playerProcessor.PlayerStore
	pinger     store.Pinger
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
		Checks: make(map[string]store.Pinger),
	}

	// Initialize document store
	gw, err := deps.connectStore(ctx, cfg, logger)
	if err != nil {
		deps.Cleanup(ctx)
		return nil, err
	}
	deps.Checks["store"] = gw.pinger

	// Initialize dispatcher
	policy, err := dispatcher.ParseAckPolicy(cfg.Dispatcher.AckPolicy)
	if err != nil {
		deps.Cleanup(ctx)
		return nil, fmt.Errorf("failed to configure dispatcher: %w", err)
	}
	deps.Dispatcher = dispatcher.New(dispatcher.Config{
		WorkerCount: cfg.Dispatcher.WorkerCount,
		AckPolicy:   policy,
		Classify:    classifier.New(cfg.Dispatcher.AckMarkers...).Classify,
	}, logger)

	// Initialize category processor and handler
	categoryProc := categoryProcessor.New(gw.categories, logger)
	deps.CategoryHandler = categoryHandler.New(categoryProc)
	deps.CategoryHandler.Register(deps.Dispatcher)

	// Initialize player processor and handler
	playerProc := playerProcessor.New(gw.players, logger)
	deps.PlayerHandler = playerHandler.New(playerProc)
	deps.PlayerHandler.Register(deps.Dispatcher)

	// Initialize broker source
	if err := deps.connectBroker(cfg, logger); err != nil {
		deps.Cleanup(ctx)
		return nil, err
	}

	logger.Info(ctx, fmt.Sprintf("dependencies ready: broker=%s store=%s ack_policy=%s workers=%d",
		cfg.Broker, cfg.Store, policy, cfg.Dispatcher.WorkerCount))

	return deps, nil
}

func (d *Dependencies) connectStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (gateways, error) {
	collections := []string{store.CollectionCategories, store.CollectionPlayers}

	switch cfg.Store {
	case config.StoreMongo:
		db, err := store.ConnectMongo(ctx, cfg.Mongo.URL, cfg.Mongo.Database, logger)
		if err != nil {
			return gateways{}, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		if err := db.EnsureIndexes(ctx, collections...); err != nil {
			return gateways{}, err
		}
		return gateways{
			categories: store.NewMongoGateway[store.Category](db, store.CollectionCategories),
			players:    store.NewMongoGateway[store.Player](db, store.CollectionPlayers),
			pinger:     db,
		}, nil

	case config.StorePostgres:
		pg, err := store.New(cfg.Database.ConnectionString(), logger)
		if err != nil {
			return gateways{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error { return pg.Close() })
		if err := pg.EnsureSchema(ctx, collections...); err != nil {
			return gateways{}, err
		}
		return gateways{
			categories: store.NewPostgresGateway[store.Category](&pg, store.CollectionCategories),
			players:    store.NewPostgresGateway[store.Player](&pg, store.CollectionPlayers),
			pinger:     &pg,
		}, nil

	default:
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		categories := store.NewMemoryGateway[store.Category](store.CollectionCategories)
		return gateways{
			categories: categories,
			players:    store.NewMemoryGateway[store.Player](store.CollectionPlayers),
			pinger:     categories,
		}, nil
	}
}

func (d *Dependencies) connectBroker(cfg *config.Config, logger *observability.Logger) error {
	switch cfg.Broker {
	case config.BrokerKafka:
		producer := kafkaBroker.NewProducer(kafkaBroker.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
		}, logger)
		consumer := kafkaBroker.NewConsumer(kafkaBroker.Config{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			ReplyTopic:    cfg.Kafka.ReplyTopic,
			RetryTopic:    cfg.Kafka.RetryTopic,
		}, producer, logger)
		// the consumer goes first so no reply or retry is produced after the writer closes
		d.closers = append(d.closers,
			func(context.Context) error { return producer.Close() },
			func(context.Context) error { return consumer.Close() },
		)
		d.Source = consumer
		d.Checks["broker"] = consumer

	default:
		consumer, err := rabbitmq.Dial(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
		}, logger)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func(context.Context) error { return consumer.Close() })
		d.Source = consumer
		d.Checks["broker"] = consumer
	}
	return nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			d.Logger.Error(ctx, "failed to close resource", err)
		}
	}
	d.closers = nil
}
