// Package app is the composition root: it wires config, storage, queues,
// workers, the gateway and the HTTP handlers into one runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/discovery"
	"github.com/ternarybob/venator/internal/drafts"
	"github.com/ternarybob/venator/internal/events"
	"github.com/ternarybob/venator/internal/handlers"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/pipeline"
	"github.com/ternarybob/venator/internal/queue"
	"github.com/ternarybob/venator/internal/storage"
	"github.com/ternarybob/venator/internal/verification"
	"github.com/ternarybob/venator/internal/workers"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *storage.Manager
	EventService   interfaces.EventService

	Queues  map[models.QueueName]interfaces.JobQueue
	Pools   []*queue.WorkerPool
	Sweeper *queue.Sweeper

	Gateway *pipeline.Gateway

	// HTTP handlers
	DiscoveryHandler *handlers.DiscoveryHandler
	StatusHandler    *handlers.StatusHandler
	WSHandler        *handlers.WebSocketHandler
}

// New builds the application from config. Nothing is started yet; Start
// launches the worker pools and the sweeper.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := storage.NewManager(logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.EventService = events.NewService(logger)

	verifier := verification.NewHeuristicVerifier(logger)
	executor := a.buildExecutor(verifier)
	draftModel, err := a.buildDraftModel()
	if err != nil {
		return nil, err
	}

	results := storageManager.ResultStore()
	jobWorkers := map[models.JobKind]interfaces.JobWorker{
		models.KindDiscovery:    workers.NewDiscoveryWorker(executor, results, a.EventService, logger),
		models.KindVerification: workers.NewVerificationWorker(verifier, results, a.EventService, logger),
		models.KindEnrichment:   workers.NewEnrichmentWorker(executor, results, a.EventService, logger),
		models.KindDraft:        workers.NewDraftWorker(draftModel, results, a.EventService, logger),
	}

	if err := a.buildQueues(jobWorkers); err != nil {
		return nil, err
	}

	a.Gateway = pipeline.NewGateway(a.Queues, jobWorkers, results, a.EventService, logger)

	a.DiscoveryHandler = handlers.NewDiscoveryHandler(a.Gateway, logger)
	a.StatusHandler = handlers.NewStatusHandler(a.queueList(), logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger, &config.WebSocket)

	return a, nil
}

// buildExecutor registers the configured discovery providers.
func (a *App) buildExecutor(verifier interfaces.EmailVerifier) *discovery.Executor {
	providerNames := a.Config.Discovery.Providers
	if len(providerNames) == 0 {
		providerNames = common.DefaultDiscoveryProviders
	}

	timeout := common.ParseDuration(a.Config.Discovery.RequestTimeout, 10*time.Second)

	var providers []interfaces.DiscoveryProvider
	for _, name := range providerNames {
		switch name {
		case "pattern":
			providers = append(providers, discovery.NewPatternProvider())
		case "teampage":
			providers = append(providers, discovery.NewTeamPageProvider(discovery.TeamPageConfig{
				Paths:         a.Config.Discovery.TeamPage.Paths,
				Timeout:       timeout,
				RateInterval:  common.ParseDuration(a.Config.Discovery.TeamPage.RateInterval, 500*time.Millisecond),
				MaxCandidates: a.Config.Discovery.TeamPage.MaxCandidates,
			}, a.Logger))
		default:
			a.Logger.Warn().Str("provider", name).Msg("Unknown discovery provider, skipping")
		}
	}

	return discovery.NewExecutor(providers, verifier, a.Logger)
}

func (a *App) buildDraftModel() (interfaces.DraftModel, error) {
	if a.Config.Drafts.Provider == "anthropic" && a.Config.Drafts.APIKey != "" {
		return drafts.NewAnthropicModel(&a.Config.Drafts, a.Logger)
	}
	return drafts.NewTemplateModel(), nil
}

// buildQueues creates one Badger-backed queue and worker pool per known
// queue name. Memory-only storage has no transport, so the queue map stays
// empty and every submission takes the gateway's inline path.
func (a *App) buildQueues(jobWorkers map[models.JobKind]interfaces.JobWorker) error {
	a.Queues = make(map[models.QueueName]interfaces.JobQueue)

	db := a.StorageManager.DB()
	if db == nil {
		a.Logger.Warn().Msg("No durable storage configured, jobs will execute inline")
		return nil
	}

	pollInterval := common.ParseDuration(a.Config.Queue.PollInterval, 250*time.Millisecond)
	visibility := common.ParseDuration(a.Config.Queue.VisibilityTimeout, 2*time.Minute)

	for _, name := range models.AllQueues() {
		workerCfg := a.Config.Queue.ForQueue(name)

		q, err := queue.NewBadgerQueue(db.Badger(), name, queue.Options{
			VisibilityTimeout: visibility,
			Retry: queue.RetryPolicy{
				MaxAttempts: workerCfg.MaxAttempts,
				BackoffBase: common.ParseDuration(workerCfg.BackoffBase, 2*time.Second),
				BackoffKind: workerCfg.BackoffKind,
			},
			CompletedRetention: a.Config.Queue.CompletedRetention,
			FailedRetention:    a.Config.Queue.FailedRetention,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create %s queue: %w", name, err)
		}
		a.Queues[name] = q

		pool := queue.NewWorkerPool(q, workerCfg.Concurrency, pollInterval, a.Logger)
		for _, w := range jobWorkers {
			if models.QueueFor(w.Kind()) == name {
				pool.Register(w)
			}
		}
		a.Pools = append(a.Pools, pool)
	}

	a.Sweeper = queue.NewSweeper(a.queueList(), a.Logger)
	return nil
}

func (a *App) queueList() []interfaces.JobQueue {
	list := make([]interfaces.JobQueue, 0, len(a.Queues))
	for _, name := range models.AllQueues() {
		if q, ok := a.Queues[name]; ok {
			list = append(list, q)
		}
	}
	return list
}

// Start launches the worker pools and the retention sweeper.
func (a *App) Start() error {
	for _, pool := range a.Pools {
		if err := pool.Start(); err != nil {
			return err
		}
	}

	if a.Sweeper != nil {
		if err := a.Sweeper.Start(a.Config.Queue.SweepSchedule); err != nil {
			return err
		}
	}

	a.Logger.Info().
		Int("queues", len(a.Queues)).
		Str("storage", a.Config.Storage.Type).
		Msg("Application started")
	return nil
}

// Shutdown drains the worker pools, stops the sweeper and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	for _, pool := range a.Pools {
		if err := pool.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if err := a.StorageManager.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	a.Logger.Info().Msg("Application stopped")
	return firstErr
}
