// Package service assembles the monitor from its parts and owns their
// lifecycle: construct everything up front (fail fast on configuration
// problems), start the long-lived goroutines, and stop in reverse order
// within a bounded shutdown window.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/chainbound-labs/rollupwatch/internal/api"
	"github.com/chainbound-labs/rollupwatch/internal/chainclient"
	"github.com/chainbound-labs/rollupwatch/internal/config"
	"github.com/chainbound-labs/rollupwatch/internal/httputil"
	"github.com/chainbound-labs/rollupwatch/internal/hub"
	"github.com/chainbound-labs/rollupwatch/internal/metrics"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
	"github.com/chainbound-labs/rollupwatch/internal/sequencer"
	"github.com/chainbound-labs/rollupwatch/internal/watcher"
)

// ShutdownTimeout bounds graceful shutdown; tasks still running after it
// are abandoned to process exit.
const ShutdownTimeout = 5 * time.Second

var ErrAlreadyStopped = errors.New("already stopped")

type Service struct {
	Log     log.Logger
	Metrics metrics.Metricer
	Version string

	cfg *config.Config

	hub      *hub.Hub
	chain    *chainclient.Client
	watchers []*watcher.Watcher
	pollers  []*sequencer.Poller

	apiSrv     *httputil.HTTPServer
	metricsSrv *httputil.HTTPServer

	tasks     *errgroup.Group
	tasksCtx  context.Context
	tasksStop context.CancelFunc

	stopped atomic.Bool
}

// FromConfig dials the L1 endpoint and builds every component. The
// returned service is not yet running; call Start.
func FromConfig(ctx context.Context, version string, cfg *config.Config, l log.Logger) (*Service, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Service{
		Log:     l,
		Version: version,
		cfg:     cfg,
	}

	var promMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		promMetrics = metrics.NewMetrics()
		s.Metrics = promMetrics
	} else {
		s.Metrics = metrics.NoopMetrics
	}

	thresholds := make(map[rollup.ID]rollup.ThresholdSet)
	for id, rc := range cfg.Rollups {
		if rc.Watched {
			thresholds[id] = rc.Thresholds
		}
	}
	s.hub = hub.New(thresholds, cfg.BroadcastCapacity, s.Metrics, l)

	chain, err := chainclient.Dial(ctx, cfg.L1WSURL, cfg.StaleFilterTimeout, s.Metrics, l)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to L1: %w", err)
	}
	s.chain = chain

	if err := s.initWatchers(); err != nil {
		return nil, err
	}
	if err := s.initPollers(ctx); err != nil {
		return nil, err
	}

	s.Metrics.RecordInfo(version)
	return s, nil
}

func (s *Service) initWatchers() error {
	for _, id := range rollup.AllIDs() {
		rc := s.cfg.Rollups[id]
		if !rc.Watched {
			continue
		}
		spec := watcher.NewRollupSpec(id, rc.Addresses)
		s.watchers = append(s.watchers, watcher.New(spec, s.chain, s.hub, s.Metrics, s.Log))
	}
	return nil
}

// initPollers dials each configured L2 endpoint. Dial errors are
// aggregated so several broken endpoints surface in one startup failure.
func (s *Service) initPollers(ctx context.Context) error {
	var result *multierror.Error
	for _, id := range rollup.AllIDs() {
		rc := s.cfg.Rollups[id]
		if rc.L2RPC == "" {
			continue
		}
		var src sequencer.HeadSource
		var err error
		if id == rollup.Starknet {
			src, err = sequencer.DialStarknetHead(ctx, rc.L2RPC)
		} else {
			src, err = sequencer.DialEthHead(ctx, rc.L2RPC)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
			continue
		}
		s.pollers = append(s.pollers, sequencer.NewPoller(id, src, s.hub, rc.L2PollInterval, s.cfg.SequencerDownThreshold, s.Metrics, s.Log))
	}
	return result.ErrorOrNil()
}

// Start brings up the API (and optionally metrics) servers and spawns
// one goroutine per watcher and poller.
func (s *Service) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.ServerHost, strconv.Itoa(s.cfg.ServerPort))
	apiServer := api.NewServer(s.hub, s.cfg.SequencerDownThreshold, s.Version, s.Log)
	srv, err := httputil.StartHTTPServer(addr, apiServer.Handler())
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	s.apiSrv = srv
	s.Log.Info("API server started", "addr", srv.Addr())

	if s.cfg.MetricsEnabled {
		if err := s.startMetricsServer(); err != nil {
			return err
		}
	}

	s.tasksCtx, s.tasksStop = context.WithCancel(context.Background())
	s.tasks, _ = errgroup.WithContext(s.tasksCtx)
	for _, w := range s.watchers {
		w := w
		s.tasks.Go(func() error {
			w.Run(s.tasksCtx)
			return nil
		})
	}
	for _, p := range s.pollers {
		p := p
		s.tasks.Go(func() error {
			p.Run(s.tasksCtx)
			return nil
		})
	}

	s.Metrics.RecordUp()
	s.Log.Info("rollupwatch started", "watchers", len(s.watchers), "pollers", len(s.pollers))
	return nil
}

func (s *Service) startMetricsServer() error {
	m, ok := s.Metrics.(*metrics.Metrics)
	if !ok {
		return fmt.Errorf("metrics enabled, but metricer %T exposes no registry", s.Metrics)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	addr := net.JoinHostPort(s.cfg.MetricsHost, strconv.Itoa(s.cfg.MetricsPort))
	srv, err := httputil.StartHTTPServer(addr, mux)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	s.metricsSrv = srv
	s.Log.Info("metrics server started", "addr", srv.Addr())
	return nil
}

// APIAddr returns the bound API address; nil before Start.
func (s *Service) APIAddr() net.Addr {
	if s.apiSrv == nil {
		return nil
	}
	return s.apiSrv.Addr()
}

func (s *Service) Stopped() bool {
	return s.stopped.Load()
}

// Stop shuts the service down in reverse dependency order: stop the
// writers (watchers, pollers), close the L1 connection, wake and close
// subscribers, then stop the HTTP servers. Bounded by ctx; callers pass
// a ShutdownTimeout-scoped context.
func (s *Service) Stop(ctx context.Context) error {
	if s.Stopped() {
		return ErrAlreadyStopped
	}
	var result error

	if s.tasksStop != nil {
		s.tasksStop()
		done := make(chan struct{})
		go func() {
			_ = s.tasks.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			result = errors.Join(result, fmt.Errorf("watcher/poller tasks did not stop in time: %w", ctx.Err()))
		}
	}

	if s.chain != nil {
		s.chain.Close()
	}
	if s.hub != nil {
		s.hub.Close()
	}

	if s.apiSrv != nil {
		if err := s.apiSrv.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop API server: %w", err))
		}
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}

	if result == nil {
		s.stopped.Store(true)
		s.Log.Info("stopped all services")
	}
	return result
}
