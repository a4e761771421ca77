package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fileshare/internal/logger"
)

// Server owns the TCP listener and connection lifecycle. Each accepted
// connection gets a worker goroutine running the request/response loop
// against a fresh Session.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Blocking reads interrupted via short deadlines
//  4. Wait for active workers to drain (up to ShutdownTimeout)
//  5. Force-close any remaining connections
type Server struct {
	config     Config
	engine     *Engine
	dispatcher *Dispatcher

	// listener is closed during shutdown to stop accepting.
	listener   net.Listener
	listenerMu sync.RWMutex

	// listenerReady is closed once the listener is bound. Tests use it to
	// synchronize with startup.
	listenerReady chan struct{}

	// shutdown is closed by initiateShutdown and watched by the accept
	// loop and every worker.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// activeConns tracks workers for graceful shutdown.
	activeConns sync.WaitGroup

	// connCount is the number of live connections, checked against
	// MaxConnections on accept.
	connCount atomic.Int32

	// activeConnections maps remote address to net.Conn so shutdown can
	// interrupt reads and force-close stragglers.
	activeConnections sync.Map

	// sessionSeq hands out session IDs.
	sessionSeq atomic.Uint64
}

// New creates a server over the engine. Zero config values are replaced
// with defaults; an invalid config panics since it indicates a programmer
// error, not a runtime condition.
func New(config Config, engine *Engine) *Server {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	return &Server{
		config:        config,
		engine:        engine,
		dispatcher:    NewDispatcher(engine),
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve binds the listener and accepts connections until the context is
// cancelled or Stop is called. It returns nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	listenAddr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("server listening", "address", listener.Addr().String())
	logger.Debug("server config",
		"max_connections", s.config.MaxConnections,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received", logger.Err(ctx.Err()))
		s.initiateShutdown()
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				// Listener was closed on purpose.
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error", logger.Err(err))
				continue
			}
		}

		// Over the cap the connection is closed immediately rather than
		// queued; a stalled client must not starve the accept loop.
		if int(s.connCount.Load()) >= s.config.MaxConnections {
			logger.Warn("connection rejected: limit reached",
				logger.ClientIP(tcpConn.RemoteAddr().String()),
				"max_connections", s.config.MaxConnections)
			s.engine.Metrics.ConnRejected()
			_ = tcpConn.Close()
			continue
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetKeepAlive(true); err != nil {
				logger.Debug("failed to enable keepalive", logger.Err(err))
			}
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		s.engine.Metrics.ConnOpened()

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		logger.Debug("connection accepted",
			logger.ClientIP(connAddr),
			"active", s.connCount.Load())

		worker := s.newConn(tcpConn)
		go func(addr string, tcp net.Conn) {
			defer func() {
				s.activeConnections.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				s.engine.Metrics.ConnClosed()

				logger.Debug("connection closed",
					logger.ClientIP(addr),
					"active", s.connCount.Load())
			}()

			worker.serve(ctx)
		}(connAddr, tcpConn)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("shutdown context cancelled", "active", remaining, logger.Err(ctx.Err()))
		return ctx.Err()
	}
}

// initiateShutdown is idempotent: closes the shutdown channel, closes the
// listener and interrupts blocking reads so workers notice quickly.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("error closing listener", logger.Err(err))
			}
		}
		s.listenerMu.Unlock()

		s.interruptBlockingReads()
	})
}

// interruptBlockingReads sets a short deadline on every active connection
// so workers blocked in ReadPacket return promptly instead of waiting out
// the full read timeout.
func (s *Server) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	s.activeConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("error setting shutdown deadline",
					logger.ClientIP(key.(string)), logger.Err(err))
			}
		}
		return true
	})
}

// gracefulShutdown waits for workers to drain or force-closes them after
// the configured timeout.
func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("graceful shutdown: waiting for connections",
		"active", active, "timeout", s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("shutdown timeout exceeded, forcing closure", "active", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.activeConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("error force-closing connection",
				logger.ClientIP(key.(string)), logger.Err(err))
		} else {
			closed++
		}
		return true
	})

	if closed > 0 {
		logger.Info("force-closed connections", "count", closed)
	}
}

// ActiveConnections returns the current number of live connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// ListenerAddr blocks until the listener is bound and returns its address.
func (s *Server) ListenerAddr() string {
	<-s.listenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) newConn(tcpConn net.Conn) *connection {
	return &connection{
		server:  s,
		conn:    tcpConn,
		session: NewSession(s.sessionSeq.Add(1)),
	}
}
