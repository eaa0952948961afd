package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ConnectionState is the supervisor's view of the broker connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the lowercase state name used in logs.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RetryMode controls whether the supervisor waits before checking the connection.
//
// It starts as RetryImmediate and moves to RetryDelayed on the first
// successful connect. It never moves back.
type RetryMode int

const (
	RetryImmediate RetryMode = iota
	RetryDelayed
)

// String returns the lowercase mode name used in logs.
func (m RetryMode) String() string {
	if m == RetryDelayed {
		return "delayed"
	}
	return "immediate"
}

// MarshalText encodes the mode by name.
func (m RetryMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// outcome is the result of a single supervisor iteration.
type outcome int

const (
	outcomeConnected outcome = iota // this iteration established the connection
	outcomeAlive                    // connected already, or the transport is reconnecting itself
	outcomeFailed
	outcomeStopped
)

// Supervisor keeps a Transport connected for as long as Run is executing.
//
// Connect attempts are strictly serialized: a new attempt is only issued
// after the previous one has reported its outcome. Every failure is retried
// after a fixed interval, without limit.
type Supervisor struct {
	transport Transport
	interval  time.Duration
	logger    Logger
	metrics   *Metrics

	mu       sync.RWMutex
	state    ConnectionState
	mode     RetryMode
	attempts int
}

// NewSupervisor creates a supervisor for t that waits interval between
// attempts. A non-positive interval selects the 10 second default.
func NewSupervisor(t Transport, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	return &Supervisor{
		transport: t,
		interval:  interval,
		logger:    noopLogger{},
		state:     StateDisconnected,
		mode:      RetryImmediate,
	}
}

// SetLogger sets the logger. Call before Run.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMetrics sets the metrics sink. Call before Run.
func (s *Supervisor) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Run supervises the connection until ctx is cancelled, then returns ctx.Err().
//
// The first check happens immediately. Every later check waits for the
// interval first: after a successful connect, after finding the connection
// already up, and after a failed attempt.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("connection supervisor started",
		"client_id", s.transport.ClientID(),
		"interval", s.interval,
	)

	wait := s.Mode() == RetryDelayed
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("connection supervisor stopped", "client_id", s.transport.ClientID())
			return err
		}

		if wait {
			timer := time.NewTimer(s.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("connection supervisor stopped", "client_id", s.transport.ClientID())
				return ctx.Err()
			case <-timer.C:
			}
		}

		switch s.step(ctx) {
		case outcomeStopped:
			s.logger.Info("connection supervisor stopped", "client_id", s.transport.ClientID())
			return ctx.Err()
		case outcomeConnected:
			wait = s.Mode() == RetryDelayed
		default:
			wait = true
		}
	}
}

// step checks the connection once and, if it is down, performs one connect attempt.
func (s *Supervisor) step(ctx context.Context) outcome {
	clientID := s.transport.ClientID()

	if s.transport.IsConnected() {
		s.setState(StateConnected)
		s.logger.Debug("connection check passed", "client_id", clientID)
		return outcomeAlive
	}

	if s.Mode() == RetryDelayed {
		s.logger.Info("reconnecting to broker", "client_id", clientID, "attempt", s.Attempts()+1)
	}

	s.setState(StateConnecting)
	s.recordAttempt()

	// Buffered so a late completion never blocks the transport.
	done := make(chan error, 1)
	if err := s.transport.Connect(func(err error) { done <- err }); err != nil {
		return s.handleFailure(clientID, failureSync, err)
	}

	var err error
	stopped := false
	select {
	case err = <-done:
	case <-ctx.Done():
		// The attempt stays ours until it reports back, so a caller that
		// disconnects after Run returns never races a pending connect.
		s.logger.Debug("waiting for in-flight connect attempt", "client_id", clientID)
		err = <-done
		stopped = true
	}

	var result outcome
	if err != nil {
		result = s.handleFailure(clientID, failureAsync, err)
	} else {
		s.handleSuccess(clientID)
		result = outcomeConnected
	}

	if stopped {
		return outcomeStopped
	}
	return result
}

func (s *Supervisor) handleSuccess(clientID string) {
	s.mu.Lock()
	s.state = StateConnected
	s.mode = RetryDelayed
	s.mu.Unlock()
	s.metrics.setConnected(true)

	s.logger.Info("connected to broker", "client_id", clientID)
}

func (s *Supervisor) handleFailure(clientID, kind string, err error) outcome {
	if errors.Is(err, ErrAlreadyConnected) {
		s.setState(StateConnected)
		s.logger.Debug("connect skipped, transport already connected", "client_id", clientID)
		return outcomeAlive
	}
	if errors.Is(err, ErrReconnecting) {
		s.setState(StateConnecting)
		s.logger.Debug("connect skipped, transport is reconnecting", "client_id", clientID)
		return outcomeAlive
	}

	s.setState(StateDisconnected)
	s.metrics.failure(kind)
	s.logger.Error("connect attempt failed",
		"client_id", clientID,
		"kind", kind,
		"retry_in", s.interval,
		"error", err,
	)
	return outcomeFailed
}

func (s *Supervisor) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.metrics.setConnected(state == StateConnected)
}

func (s *Supervisor) recordAttempt() {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	s.metrics.attempt()
}

// State returns the last observed connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Mode returns the current retry mode.
func (s *Supervisor) Mode() RetryMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Attempts returns the number of connect attempts issued so far.
func (s *Supervisor) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// Interval returns the fixed delay between attempts.
func (s *Supervisor) Interval() time.Duration {
	return s.interval
}
