package utils

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// A restarted child finds the inherited listener on this fd.
const (
	inheritEnvKey   = "EDUBOARD_INHERIT_LISTENER"
	inheritListenFD = 3
)

// ServerOptions tune the HTTP server. Zero values fall back to defaults.
type ServerOptions struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// DrainTimeout bounds how long in-flight requests may run after a stop signal.
	DrainTimeout time.Duration
	// OnDrain runs as soon as draining starts, e.g. to drop websocket subscribers.
	OnDrain []func()
	// OnStop runs after requests drained, e.g. to close the store.
	OnStop []func(context.Context) error
}

func (o *ServerOptions) defaults() {
	if o.ReadHeaderTimeout <= 0 {
		o.ReadHeaderTimeout = 10 * time.Second
	}
	// multipart uploads of up to UploadMaxMB need a generous body timeout
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 5 * time.Minute
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 30 * time.Second
	}
}

// GraceServer serves handler on addr until SIGINT/SIGTERM, then drains. SIGUSR2
// forks a copy of the binary that inherits the listening socket, after which
// this process drains and exits.
type GraceServer struct {
	http *http.Server
	opts ServerOptions
	log  *zap.Logger

	ln      net.Listener
	signals chan os.Signal
	stopped chan error
}

func NewGraceServer(addr string, handler http.Handler, opts ServerOptions) *GraceServer {
	opts.defaults()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		ReadTimeout:       opts.ReadTimeout,
	}
	for _, fn := range opts.OnDrain {
		srv.RegisterOnShutdown(fn)
	}
	return &GraceServer{
		http:    srv,
		opts:    opts,
		log:     Logger.Named("server"),
		signals: make(chan os.Signal, 1),
		stopped: make(chan error, 1),
	}
}

// Run blocks until the server has stopped and every OnStop hook has run.
func (s *GraceServer) Run() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("listening", zap.String("addr", ln.Addr().String()), zap.Bool("inherited", os.Getenv(inheritEnvKey) != ""))

	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(s.signals)
	go s.watch()

	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return <-s.stopped
}

func (s *GraceServer) listen() (net.Listener, error) {
	if os.Getenv(inheritEnvKey) != "" {
		ln, err := net.FileListener(os.NewFile(inheritListenFD, "listener"))
		return ln, errors.Wrap(err, "inherit listener")
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	return ln, errors.Wrapf(err, "listen %s", s.http.Addr)
}

func (s *GraceServer) watch() {
	for sig := range s.signals {
		if sig == syscall.SIGUSR2 {
			pid, err := s.fork()
			if err != nil {
				s.log.Error("restart failed, still serving", zap.Error(err))
				continue
			}
			s.log.Info("restarted, draining old process", zap.Int("new_pid", pid))
		} else {
			s.log.Info("stop signal received, draining", zap.String("signal", sig.String()))
		}
		s.stopped <- s.stop()
		return
	}
}

func (s *GraceServer) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.DrainTimeout)
	defer cancel()

	var firstErr error
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Warn("drain incomplete", zap.Duration("timeout", s.opts.DrainTimeout), zap.Error(err))
		firstErr = errors.Wrap(err, "shutdown")
	}
	for _, fn := range s.opts.OnStop {
		if err := fn(ctx); err != nil {
			s.log.Warn("stop hook failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.log.Info("server stopped")
	return firstErr
}

// fork starts a new copy of the binary sharing the listening socket.
func (s *GraceServer) fork() (int, error) {
	tcp, ok := s.ln.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	f, err := tcp.File()
	if err != nil {
		return 0, errors.Wrap(err, "listener file")
	}
	defer f.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, inheritEnvKey+"=") {
			env = append(env, kv)
		}
	}
	env = append(env, inheritEnvKey+"=1")

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
	return pid, errors.Wrap(err, "fork")
}
