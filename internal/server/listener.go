// Package server owns the listening socket: binding with ephemeral-port
// fallback, serving, and a single bounded graceful close.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// ErrShutdownTimeout is returned by Close when in-flight requests did not
// finish within the grace period and connections were force-closed.
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

// State is the lifecycle state of a Listener.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Listener binds an http.Server to one TCP socket. Transitions only move
// forward: Unbound → Bound → Closed (or Unbound → Closed).
type Listener struct {
	srv    *http.Server
	grace  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	state State
	ln    net.Listener

	closeOnce sync.Once
	closeErr  error
}

// New creates an unbound Listener serving handler. grace bounds how long Close
// waits for in-flight requests before force-closing connections.
func New(handler http.Handler, grace time.Duration, logger *slog.Logger) *Listener {
	return &Listener{
		srv: &http.Server{
			Handler: handler,
			// Inbound timeouts to mitigate slow-client attacks. WriteTimeout
			// stays 0 so large static files are not cut off mid-stream.
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		grace:  grace,
		logger: logger.With("component", "listener"),
	}
}

// Bind opens the socket on host:port. If the port is already in use it
// retries once on an OS-assigned port. It returns the port actually bound.
func (l *Listener) Bind(host string, port int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateUnbound {
		return 0, fmt.Errorf("bind: listener is %s", l.state)
	}

	ln, err := listen(host, port)
	if errors.Is(err, syscall.EADDRINUSE) {
		l.logger.Warn("port already in use, falling back to an ephemeral port", "port", port)
		ln, err = listen(host, 0)
		if err != nil {
			return 0, fmt.Errorf("bind ephemeral port: %w", err)
		}
	} else if err != nil {
		return 0, err
	}

	l.ln = ln
	l.state = StateBound
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func listen(host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections until Close is called. It returns nil after a
// close and the accept error otherwise.
func (l *Listener) Serve() error {
	l.mu.Lock()
	ln, state := l.ln, l.state
	l.mu.Unlock()

	if state != StateBound {
		return fmt.Errorf("serve: listener is %s", state)
	}
	if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Port returns the bound port, or 0 when not bound.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return 0
	}
	return l.ln.Addr().(*net.TCPAddr).Port
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close stops accepting connections and waits up to the grace period (or
// ctx, whichever ends first) for in-flight requests. On timeout every
// connection is force-closed and ErrShutdownTimeout returned. Only the first
// call does any work; later calls return the first result.
func (l *Listener) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.closeErr = l.shutdown(ctx)
	})
	return l.closeErr
}

func (l *Listener) shutdown(ctx context.Context) error {
	l.mu.Lock()
	prev, ln := l.state, l.ln
	l.state = StateClosed
	l.mu.Unlock()

	if prev == StateUnbound {
		return nil
	}

	l.logger.Info("shutting down server", "grace", l.grace)

	ctx, cancel := context.WithTimeout(ctx, l.grace)
	defer cancel()

	err := l.srv.Shutdown(ctx)
	// Serve may never have run, in which case Shutdown does not know the socket.
	_ = ln.Close()

	switch {
	case err == nil:
		l.logger.Info("server closed")
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		l.logger.Warn("shutdown timed out, forcing close")
		_ = l.srv.Close()
		return ErrShutdownTimeout
	default:
		_ = l.srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
}
