// Package http serves the prediction form page and the JSON API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"scorecast/config"
	"scorecast/db"
	"scorecast/ml"
	"scorecast/monitoring"
)

const maxBodyBytes = 1 << 20

// Predictor scores frames. *ml.PredictPipeline is the production
// implementation.
type Predictor interface {
	Predict(ctx context.Context, frame *ml.Frame) ([]float64, error)
}

// PredictionStore persists served predictions and exposes the training log.
type PredictionStore interface {
	SavePrediction(ctx context.Context, p db.Prediction) error
	GetPrediction(ctx context.Context, id string) (*db.Prediction, error)
	RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error)
	LoadTrainingLog(ctx context.Context) ([]db.TrainingLog, error)
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Predictor is required; Store,
// Recent, Hub and Stats are optional.
type Options struct {
	Config    config.HTTPConfig
	Logger    *zap.Logger
	Predictor Predictor
	Schema    ml.Schema
	Store     PredictionStore
	Recent    *monitoring.RecentPredictions
	Hub       *monitoring.Hub
	Stats     *monitoring.Stats
}

// Server owns the router and the underlying http.Server.
type Server struct {
	server    *http.Server
	router    *mux.Router
	logger    *zap.Logger
	predictor Predictor
	schema    ml.Schema
	store     PredictionStore
	recent    *monitoring.RecentPredictions
	hub       *monitoring.Hub
	stats     *monitoring.Stats
	page      *template.Template
}

// NewServer builds the routes and middleware chain from opts.
func NewServer(opts Options) (*Server, error) {
	if opts.Predictor == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Schema.Columns()) == 0 {
		opts.Schema = ml.DefaultSchema()
	}
	if opts.Stats == nil {
		opts.Stats = monitoring.NewStats()
	}
	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    mux.NewRouter(),
		logger:    opts.Logger,
		predictor: opts.Predictor,
		schema:    opts.Schema,
		store:     opts.Store,
		recent:    opts.Recent,
		hub:       opts.Hub,
		stats:     opts.Stats,
		page:      page,
	}
	s.routes()

	chain := Chain(
		LoggerMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(opts.Config.AllowedOrigins),
		TimeoutMiddleware(opts.Config.Timeout),
		RequestSizeMiddleware(maxBodyBytes),
	)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", opts.Config.Port),
		Handler:     chain(s.router),
		ReadTimeout: opts.Config.Timeout,
		IdleTimeout: 120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/predictdata", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/predictdata", s.handlePredictForm).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/predict", s.handlePredictAPI).Methods(http.MethodPost)
	api.HandleFunc("/predictions/recent", s.handleRecentPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions/{id}", s.handleGetPrediction).Methods(http.MethodGet)
	api.HandleFunc("/training/runs", s.handleTrainingRuns).Methods(http.MethodGet)
	if s.hub != nil {
		api.Handle("/ws/predictions", s.hub).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
