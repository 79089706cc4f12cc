package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/osmaa/takahe/internal/actors"
	receiveinbox "github.com/osmaa/takahe/internal/transport/http/receive_inbox"
	"github.com/osmaa/takahe/pkg/logger"
)

type service interface {
	Enqueue(ctx context.Context, payload map[string]any) (uuid.UUID, error)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	service  service
	resolver actors.Resolver
}

func NewHTTPTransport(service service, resolver actors.Resolver) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:   server,
		router:   router,
		service:  service,
		resolver: resolver,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting new requests and drains in-flight ones.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Post("/inbox", h.receiveInbox)
	h.router.Get("/healthz", h.healthz)
}

func (h *HTTPTransport) receiveInbox(w http.ResponseWriter, r *http.Request) {
	receiveinbox.Receive(w, r, h.service, h.resolver)
}

func (h *HTTPTransport) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
