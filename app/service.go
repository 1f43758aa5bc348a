// Package app wires the configuration into a running planner service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ems/api/optimize"
	"github.com/kilianp07/ems/config"
	"github.com/kilianp07/ems/core/dispatch"
	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/infra/logger"
	"github.com/kilianp07/ems/infra/metrics"
	"github.com/kilianp07/ems/infra/mqtt"
	"github.com/kilianp07/ems/infra/solver"
	"github.com/kilianp07/ems/internal/eventbus"
)

// NewOptimizer builds the solver backend and metrics sinks described by cfg.
// The caller closes the returned sink with coremetrics.CloseSink.
func NewOptimizer(cfg *config.Config) (*dispatch.Optimizer, coremetrics.RunRecorder, error) {
	logger.SetLevel(cfg.Logging.Level)
	s, err := solver.New(cfg.Solver, logger.New("solver"))
	if err != nil {
		return nil, nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics sink: %w", err)
	}
	opt := dispatch.NewOptimizer(s, cfg.Solver.Options(), logger.New("optimizer"), sink)
	return opt, sink, nil
}

// Service serves the optimization API and fans finished plans out to the
// plan store and the MQTT broker.
type Service struct {
	cfg       *config.Config
	Optimizer *dispatch.Optimizer
	sink      coremetrics.RunRecorder
	bus       *eventbus.TypedBus[*dispatch.Result]
	publisher *mqtt.PlanPublisher
	router    *mux.Router
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	opt, sink, err := NewOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		cfg:       cfg,
		Optimizer: opt,
		sink:      sink,
		bus:       eventbus.NewTyped[*dispatch.Result](),
		log:       logger.New("service"),
	}
	if cfg.MQTT.Enabled() {
		pub, err := mqtt.NewPlanPublisher(cfg.MQTT)
		if err != nil {
			coremetrics.CloseSink(sink)
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}

	h := optimize.NewHandler(opt, svc.bus, cfg.Server.MaxBodyBytes, logger.New("api"))
	h.SetSite(cfg.Site)
	if l, ok := coremetrics.Lookup[coremetrics.RunLister](sink); ok {
		h.SetHistory(l)
	}
	svc.router = optimize.NewRouter(h)
	return svc, nil
}

// Handler returns the HTTP handler of the API.
func (s *Service) Handler() http.Handler { return s.router }

// Run serves the API and starts the plan consumers. It blocks until ctx is
// canceled or the listener fails.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	metrics.StartPlanCollector(ctx, s.bus.Subscribe, s.sink)
	if s.publisher != nil {
		go s.publisher.Run(ctx, s.bus.Subscribe())
	}
	if s.cfg.Metrics.HasSink("prometheus") && s.cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http server shutdown: %v", err)
		}
	}()
	s.log.Infof("serving API on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the broker connection and the metrics sinks.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	coremetrics.CloseSink(s.sink)
	return nil
}
