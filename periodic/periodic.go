// Package periodic runs a callback on a fixed interval in a single background goroutine.
package periodic

import (
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"sync"
	"time"
)

type Status int32

const (
	Stopped Status = iota
	Running
	Stopping
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

var ErrAlreadyRunning = errors.New("periodic service already running")

// Service calls its callback once per interval. Callbacks never overlap.
type Service struct {
	interval time.Duration
	callback func()
	status   *atomic.Int32
	logger   *zap.Logger

	// mu guards the channels of the current loop
	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func New(interval time.Duration, callback func(), logger *zap.Logger) *Service {
	if logger == nil {
		logger = util.GetLogger("periodic", "New")
	}
	return &Service{
		interval: interval,
		callback: callback,
		status:   atomic.NewInt32(int32(Stopped)),
		logger:   logger,
	}
}

func (s *Service) Interval() time.Duration {
	return s.interval
}

func (s *Service) Status() Status {
	return Status(s.status.Load())
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.CAS(int32(Stopped), int32(Running)) {
		return errors.Annotatef(ErrAlreadyRunning, "status %s", s.Status())
	}
	s.spawn()
	return nil
}

// Stop asks the loop to exit and waits up to timeout for it. It returns false when the
// loop was still busy after timeout; the service is considered stopped either way.
// A timeout of zero does not wait.
func (s *Service) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	if !s.status.CAS(int32(Running), int32(Stopping)) {
		s.mu.Unlock()
		return true
	}
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	exited := wait(done, timeout)
	if !exited {
		s.logger.Warn("periodic loop did not exit in time", zap.Duration("timeout", timeout))
	}
	s.status.Store(int32(Stopped))
	return exited
}

// Reset abandons the current loop and, if the service is running, starts a new one.
// It is used after the process state was copied so the copy gets its own goroutine.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status() != Running {
		return
	}
	close(s.stopCh)
	s.spawn()
}

func (s *Service) spawn() {
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stopCh, s.done)
}

func (s *Service) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				return
			default:
			}
			s.invoke()
		}
	}
}

func (s *Service) invoke() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("periodic callback panicked", zap.Any("panic", r))
		}
	}()
	s.callback()
}

func wait(done <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
