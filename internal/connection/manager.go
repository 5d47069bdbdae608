// Package connection owns the lifecycle of the single database connection:
// the initial connect with one of two retry strategies, a heartbeat that
// notices lost connections, and the background reconnection task.
//
// The Manager is the only writer of the connection state. The HTTP layer
// reads it through the State method (see middleware.StateReader) and uses
// the Manager itself as its storage.Storage, which forwards each call to the
// live connection.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aanand-mishra/students-api/internal/storage"
)

var (
	// ErrNotConnected is returned by storage calls made while no live
	// connection exists.
	ErrNotConnected = errors.New("database is not connected")

	// ErrRetriesExhausted is returned by Start under StrategyBounded when
	// every attempt failed.
	ErrRetriesExhausted = errors.New("database connection retries exhausted")

	// ErrAlreadyStarted is returned by Start when the manager is already
	// running.
	ErrAlreadyStarted = errors.New("connection manager already started")
)

// Conn is one live database connection.
type Conn interface {
	storage.Storage

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Database() string
	Host() string
}

// DialFunc makes a single connection attempt. The context carries the
// per-attempt connect timeout.
type DialFunc func(ctx context.Context) (Conn, error)

// Strategy selects how the initial connect handles failure.
type Strategy string

const (
	// StrategyUnbounded retries forever in the background. Start never fails.
	StrategyUnbounded Strategy = "unbounded"
	// StrategyBounded retries Attempts times, then Start returns
	// ErrRetriesExhausted and the caller is expected to exit.
	StrategyBounded Strategy = "bounded"
)

// Options configures a Manager. Zero durations and counts fall back to the
// defaults below.
type Options struct {
	Strategy          Strategy
	Attempts          int
	RetryDelay        time.Duration
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// ReconnectOnDisconnect drops the connection and dials again when a
	// heartbeat fails. When false the driver is trusted to recover on its
	// own: the state reads disconnected until a heartbeat succeeds again.
	ReconnectOnDisconnect bool
}

const (
	defaultAttempts          = 5
	defaultRetryDelay        = 5 * time.Second
	defaultConnectTimeout    = 10 * time.Second
	defaultHeartbeatInterval = 10 * time.Second
	defaultReconnectDelay    = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyUnbounded
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = defaultReconnectDelay
	}
	return o
}

// Manager maintains one connection to the backing store.
type Manager struct {
	dial DialFunc
	opts Options
	log  *slog.Logger

	mu    sync.RWMutex
	state State
	conn  Conn

	// lifecycle serialises Start and Stop.
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns a Manager in the Disconnected state. Nothing is dialled until
// Start is called.
func New(dial DialFunc, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dial:  dial,
		opts:  opts.withDefaults(),
		log:   log,
		state: Disconnected,
	}
}

// Start begins managing the connection.
//
// Under StrategyBounded the first connection is made synchronously and its
// failure is returned. Under StrategyUnbounded Start returns at once and the
// connection is made in the background. In both cases a background task then
// watches the connection until Stop is called or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}

	taskCtx, cancel := context.WithCancel(ctx)

	if m.opts.Strategy == StrategyBounded {
		if err := m.connectBounded(taskCtx); err != nil {
			cancel()
			return err
		}
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(taskCtx, m.done)

	return nil
}

// Stop cancels the background task, waits for it, and closes the
// connection. It is safe to call more than once.
func (m *Manager) Stop(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel != nil {
		m.cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.cancel = nil
		m.done = nil
	}

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		m.setState(Disconnected)
		return nil
	}

	m.setState(Disconnecting)
	err := conn.Close(ctx)
	m.setState(Disconnected)

	if err != nil {
		return fmt.Errorf("close database connection: %w", err)
	}
	m.log.Info("database connection closed")
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns the state plus database metadata when connected.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{State: m.state}
	if m.state == Connected && m.conn != nil {
		st.Database = m.conn.Database()
		st.Host = m.conn.Host()
	}
	return st
}

// run is the reconnection task. It exits only when ctx is done.
func (m *Manager) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		if !m.hasConn() {
			if !m.connectUnbounded(ctx) {
				return
			}
		}

		if !m.watch(ctx) {
			return
		}

		m.log.Warn("reconnecting to database", slog.Duration("delay", m.opts.ReconnectDelay))
		if !sleep(ctx, m.opts.ReconnectDelay) {
			return
		}
	}
}

// connectBounded makes up to Attempts attempts, RetryDelay apart.
func (m *Manager) connectBounded(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		if err = m.attempt(ctx); err == nil {
			return nil
		}

		m.log.Error("database connection failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", m.opts.Attempts),
			slog.String("error", err.Error()))

		if attempt == m.opts.Attempts {
			break
		}
		if !sleep(ctx, m.opts.RetryDelay) {
			return errors.Join(ErrRetriesExhausted, ctx.Err())
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, m.opts.Attempts, err)
}

// connectUnbounded retries until it connects or ctx is done. It reports
// whether a connection was made.
func (m *Manager) connectUnbounded(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := m.attempt(ctx)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		m.log.Error("database connection failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", m.opts.RetryDelay),
			slog.String("error", err.Error()))

		if !sleep(ctx, m.opts.RetryDelay) {
			return false
		}
	}
}

func (m *Manager) attempt(ctx context.Context) error {
	m.setState(Connecting)

	attemptCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	conn, err := m.dial(attemptCtx)
	cancel()

	if err != nil {
		m.setState(Disconnected)
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(Connected)

	m.log.Info("database connected",
		slog.String("database", conn.Database()),
		slog.String("host", conn.Host()))

	return nil
}

// watch pings the connection every HeartbeatInterval. It returns true when
// the connection was dropped and must be re-dialled, false when ctx is done.
func (m *Manager) watch(ctx context.Context) bool {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		err := m.ping(ctx)
		if ctx.Err() != nil {
			return false
		}

		if err == nil {
			if m.State() != Connected {
				m.setState(Connected)
				m.log.Info("database connection restored")
			}
			continue
		}

		if m.opts.ReconnectOnDisconnect {
			m.log.Warn("database disconnected", slog.String("error", err.Error()))
			m.drop(ctx)
			return true
		}

		m.log.Error("database error", slog.String("error", err.Error()))
		m.setState(Disconnected)
	}
}

func (m *Manager) ping(ctx context.Context) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	return conn.Ping(pingCtx)
}

// drop forgets the current connection and closes it.
func (m *Manager) drop(ctx context.Context) {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	m.setState(Disconnected)

	if conn == nil {
		return
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ConnectTimeout)
	defer cancel()
	if err := conn.Close(closeCtx); err != nil {
		m.log.Debug("closing stale database connection", slog.String("error", err.Error()))
	}
}

func (m *Manager) hasConn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.log.Debug("database state changed",
			slog.String("from", prev.String()),
			slog.String("to", s.String()))
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
