// Package server wires Cape's components into a running TCP server: it
// boots the credential store, session table, and sandbox, then runs the
// acceptor loop, handing each accepted socket to the worker pool as a job
// that decodes one request, dispatches it, writes the response, and
// closes the socket.
//
// Connections are handled by a bounded worker pool rather than a
// goroutine per connection, so the acceptor gets backpressure instead of
// unbounded fan-out. Each connection carries exactly one request.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
	"github.com/marmos91/cape/internal/config"
	"github.com/marmos91/cape/internal/controller"
	"github.com/marmos91/cape/internal/credstore"
	"github.com/marmos91/cape/internal/logger"
	"github.com/marmos91/cape/internal/metrics"
	"github.com/marmos91/cape/internal/pool"
	"github.com/marmos91/cape/internal/sandbox"
	"github.com/marmos91/cape/internal/session"
)

// Server owns the acceptor loop and the shared state behind it.
type Server struct {
	cfg     *config.Config
	limits  capeproto.Limits
	ctrl    *controller.Controller
	pool    *pool.Pool
	metrics *metrics.ServerMetrics

	listenerMu    sync.Mutex
	listener      net.Listener
	listenerReady chan struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New boots the server's shared state against cfg. A credential-store
// integrity failure or an unusable home directory is returned as an error
// here, before any socket is opened; both are fatal per the error design.
func New(cfg *config.Config, m *metrics.ServerMetrics) (*Server, error) {
	sb, err := sandbox.New(cfg.Server.Home)
	if err != nil {
		return nil, fmt.Errorf("home directory %q unusable: %w", cfg.Server.Home, err)
	}

	creds, err := credstore.Open(sb.Home())
	if err != nil {
		return nil, fmt.Errorf("credential store refused: %w", err)
	}

	poolCfg := pool.DefaultConfig(runtime.NumCPU())
	if cfg.Pool.Workers > 0 {
		poolCfg.Workers = cfg.Pool.Workers
	}
	if cfg.Pool.QueueSize > 0 {
		poolCfg.QueueSize = cfg.Pool.QueueSize
	}

	ctrl := controller.New(creds, session.NewTable(), sb, cfg.Server.TimeoutDuration())
	ctrl.Metrics = m

	return &Server{
		cfg:           cfg,
		limits:        cfg.Limits.Wire(),
		ctrl:          ctrl,
		pool:          pool.New(poolCfg),
		metrics:       m,
		listenerReady: make(chan struct{}),
		shutdown:      make(chan struct{}),
	}, nil
}

// Addr returns the listener's address once Serve has bound it. Blocks
// until the listener is ready or ctx is done.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.listenerReady:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	return s.listener.Addr(), nil
}

// Serve binds the configured port and accepts connections until ctx is
// cancelled, then drains the worker pool. A bind failure is returned
// immediately; the caller treats it as fatal.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.cfg.Server.Port, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	s.pool.Start(ctx)
	logger.Info("cape server listening",
		"port", listener.Addr().(*net.TCPAddr).Port,
		"home", s.ctrl.Sandbox.Home(),
		"timeout_s", s.cfg.Server.Timeout,
	)

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.drain()
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return s.drain()
			}
			logger.Error("accept failed", logger.Err(err))
			s.initiateShutdown()
			if drainErr := s.drain(); drainErr != nil {
				return drainErr
			}
			return err
		}

		s.metrics.RecordConnectionAccepted()
		logger.Debug("connection accepted", logger.ClientAddr(conn.RemoteAddr().String()))

		submitted := s.pool.Submit(ctx, func(jobCtx context.Context) {
			s.handleConn(jobCtx, conn)
		})
		if !submitted {
			conn.Close()
		}
		s.metrics.SetQueueDepth(s.pool.QueueDepth())
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Info("shutting down, draining worker pool")
		s.listenerMu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.listenerMu.Unlock()
		close(s.shutdown)
	})
}

func (s *Server) drain() error {
	if !s.pool.Shutdown(s.cfg.Server.ShutdownTimeout) {
		return fmt.Errorf("worker pool did not drain within %s", s.cfg.Server.ShutdownTimeout)
	}
	return nil
}

// handleConn runs one request to completion: decode, dispatch, encode,
// close. The connection's read deadline is the session timeout, so a
// stalled client cannot pin a worker indefinitely.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	addr := conn.RemoteAddr().String()
	ctx = logger.WithContext(ctx, logger.NewLogContext(addr))

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.Server.TimeoutDuration())); err != nil {
		logger.Warn("failed to set read deadline", logger.ClientAddr(addr), logger.Err(err))
		return
	}

	req, err := capeproto.DecodeRequest(conn, s.limits)
	if err != nil {
		code := capeerr.CodeOf(err)
		if code == capeerr.SockClosed {
			logger.Debug("connection closed mid-frame", logger.ClientAddr(addr), logger.Err(err))
			return
		}
		logger.Debug("rejected malformed frame", logger.ClientAddr(addr), logger.ResultCode(uint8(code)))
		s.writeResponse(conn, addr, &capeproto.Response{Code: code})
		return
	}

	resp := s.ctrl.Handle(ctx, req)
	s.writeResponse(conn, addr, resp)
}

func (s *Server) writeResponse(conn net.Conn, addr string, resp *capeproto.Response) {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.Server.TimeoutDuration())); err != nil {
		logger.Warn("failed to set write deadline", logger.ClientAddr(addr), logger.Err(err))
		return
	}
	if err := capeproto.EncodeResponse(conn, *resp); err != nil {
		logger.Warn("failed to write response", logger.ClientAddr(addr), logger.Err(err))
	}
}
