package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/dal/postgres"
	blockrepo "github.com/osmaa/takahe/internal/dal/repositories/block/postgres"
	followrepo "github.com/osmaa/takahe/internal/dal/repositories/follow/postgres"
	identityrepo "github.com/osmaa/takahe/internal/dal/repositories/identity/postgres"
	inboxrepo "github.com/osmaa/takahe/internal/dal/repositories/inbox/postgres"
	interactionrepo "github.com/osmaa/takahe/internal/dal/repositories/interaction/postgres"
	postrepo "github.com/osmaa/takahe/internal/dal/repositories/post/postgres"
	reportrepo "github.com/osmaa/takahe/internal/dal/repositories/report/postgres"
	timelinerepo "github.com/osmaa/takahe/internal/dal/repositories/timeline/postgres"
	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/otel"
	"github.com/osmaa/takahe/internal/rabbitmq"
	"github.com/osmaa/takahe/internal/service/services/federationsvc"
	"github.com/osmaa/takahe/internal/service/services/inboxsvc"
	httptransport "github.com/osmaa/takahe/internal/transport/http"
	inboxworker "github.com/osmaa/takahe/internal/worker/inbox"
	"github.com/osmaa/takahe/internal/worker/reaper"
)

// App represents the application.
type App struct {
	inboxSvc       *inboxsvc.InboxService
	federationSvc  *federationsvc.FederationService
	httpTransport  *httptransport.HTTPTransport
	inboxWorker    *inboxworker.Worker
	reaperWorker   *reaper.Worker
	rabbitMqClient *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	rabbitMqClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()

	inboxRepository := inboxrepo.NewInboxRepository(postgresClient)
	identityRepository := identityrepo.NewIdentityRepository(postgresClient)
	postRepository := postrepo.NewPostRepository(postgresClient)
	followRepository := followrepo.NewFollowRepository(postgresClient)
	blockRepository := blockrepo.NewBlockRepository(postgresClient)
	interactionRepository := interactionrepo.NewInteractionRepository(postgresClient)
	reportRepository := reportrepo.NewReportRepository(postgresClient)
	timelineRepository := timelinerepo.NewTimelineRepository(postgresClient)

	resolver := actors.NewHTTPResolver(identityRepository)
	publisher := events.MustNewPublisher(rabbitMqClient)

	federationSvc := federationsvc.MustNewFederationService(
		federationsvc.WithFollowRepository(followRepository),
		federationsvc.WithBlockRepository(blockRepository),
		federationsvc.WithPostRepository(postRepository),
		federationsvc.WithInteractionRepository(interactionRepository),
		federationsvc.WithIdentityRepository(identityRepository),
		federationsvc.WithReportRepository(reportRepository),
		federationsvc.WithTimelineRepository(timelineRepository),
		federationsvc.WithActorResolver(resolver),
		federationsvc.WithEventPublisher(publisher),
	)

	inboxSvc := inboxsvc.MustNewInboxService(
		inboxsvc.WithInboxRepository(inboxRepository),
		inboxsvc.WithActorResolver(resolver),
		inboxsvc.WithHandlers(inboxsvc.Handlers{
			Follows:         federationSvc.Follows(),
			Blocks:          federationSvc.Blocks(),
			Posts:           federationSvc.Posts(),
			Interactions:    federationSvc.Interactions(),
			Identities:      federationSvc.Identities(),
			Reports:         federationSvc.Reports(),
			Timelines:       federationSvc.Timelines(),
			IdentityService: federationSvc.InternalIdentities(),
		}),
	)

	httpTransport := httptransport.NewHTTPTransport(inboxSvc, resolver)
	httpTransport.RegisterRoutes()

	inboxWorker := inboxworker.NewWorker(inboxSvc)
	reaperWorker := reaper.NewWorker(inboxRepository)

	return &App{
		inboxSvc:       inboxSvc,
		federationSvc:  federationSvc,
		httpTransport:  httpTransport,
		inboxWorker:    inboxWorker,
		reaperWorker:   reaperWorker,
		rabbitMqClient: rabbitMqClient,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting HTTP transport")
		if err := a.httpTransport.Run(); err != nil {
			slog.Error("HTTP transport error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting inbox worker")
		a.inboxWorker.Start(ctx)
	}()

	go func() {
		slog.Info("Starting reaper")
		a.reaperWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown shuts down components sequentially: workers, HTTP
// transport, RabbitMQ, PostgreSQL, and OpenTelemetry.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.inboxWorker.Stop()
	slog.Info("Inbox worker stopped gracefully")

	a.reaperWorker.Stop()
	slog.Info("Reaper stopped gracefully")

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP transport shutdown error", "error", err)
	} else {
		slog.Info("HTTP transport stopped gracefully")
	}

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
