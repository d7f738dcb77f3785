package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/pl0c/store"
	"github.com/chazu/pl0c/vm"
)

var log = commonlog.GetLogger("pl0c.server")

// CompileServer serves the compiler over gRPC (binary protobuf) and
// Connect (HTTP/JSON) on the same port.
type CompileServer struct {
	units  *UnitStore
	worker *Worker
	mux    *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a CompileServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store     *store.Store
	stepLimit int
	workers   int
	unitTTL   time.Duration
}

// WithStore caches generated code in st.
func WithStore(st *store.Store) ServerOption {
	return func(c *serverConfig) { c.store = st }
}

// WithStepLimit bounds every program run; n <= 0 disables the limit.
func WithStepLimit(n int) ServerOption {
	return func(c *serverConfig) { c.stepLimit = n }
}

// WithWorkers sets how many requests are processed at once.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithUnitTTL sets how long an unused compiled unit is kept.
func WithUnitTTL(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.unitTTL = d }
}

// New creates a CompileServer.
func New(opts ...ServerOption) *CompileServer {
	cfg := &serverConfig{
		stepLimit: vm.DefaultStepLimit,
		workers:   runtime.GOMAXPROCS(0),
		unitTTL:   30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &CompileServer{
		units:  NewUnitStore(),
		worker: NewWorker(cfg.workers),
		mux:    http.NewServeMux(),
	}

	svc := NewCompileService(s.units, s.worker, cfg.store, cfg.stepLimit)
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run))
	s.mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, svc.Release))

	// Sweep idle units every TTL/6
	interval := cfg.unitTTL / 6
	if interval <= 0 {
		interval = time.Minute
	}
	s.stopSweeper = s.units.StartSweeper(interval, cfg.unitTTL)

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *CompileServer) Handler() http.Handler {
	return s.mux
}

// Units returns the store of compiled units.
func (s *CompileServer) Units() *UnitStore {
	return s.units
}

// Serve accepts connections on lis until ctx is done. HTTP/1.1 and
// unencrypted HTTP/2 are both accepted so gRPC clients can connect
// without TLS.
func (s *CompileServer) Serve(ctx context.Context, lis net.Listener) error {
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	srv := &http.Server{
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	log.Infof("listening on %s", lis.Addr())
	log.Infof("Connect (HTTP/JSON): http://%s%s", lis.Addr(), CompileProcedure)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe starts the server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *CompileServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Stop shuts down the server's background goroutines.
func (s *CompileServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
}
