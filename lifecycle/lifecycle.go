// Package lifecycle keeps the hooks that must run when the process exits or when its
// state is copied into a new process.
//
// Go has no atexit. main runs the Default registry on SIGINT, SIGTERM and normal
// return; embedders that manage their own process lifetime call Run themselves.
package lifecycle

import (
	"context"
	"github.com/juju/errors"
	"go.uber.org/multierr"
	"sync"
)

// Hook runs once at shutdown. It should honour ctx's deadline.
type Hook func(ctx context.Context) error

type entry struct {
	key  string
	hook Hook
}

type Registry struct {
	mu        sync.Mutex
	shutdown  []entry
	afterFork []entry
	ran       bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds hook under key. Registering an existing key keeps the first hook.
func (r *Registry) Register(key string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if indexOf(r.shutdown, key) >= 0 {
		return
	}
	r.shutdown = append(r.shutdown, entry{key: key, hook: hook})
}

func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = remove(r.shutdown, key)
}

func (r *Registry) Registered(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return indexOf(r.shutdown, key) >= 0
}

// Run calls every shutdown hook, last registered first. Only the first call does
// anything; later calls return nil.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	hooks := make([]entry, len(r.shutdown))
	copy(hooks, r.shutdown)
	r.mu.Unlock()

	var err error
	for i := len(hooks) - 1; i >= 0; i-- {
		if hookErr := hooks[i].hook(ctx); hookErr != nil {
			err = multierr.Append(err, errors.Annotatef(hookErr, "shutdown hook %s", hooks[i].key))
		}
	}
	return err
}

// RegisterAfterFork adds a reset hook under key, keeping the first one for a key.
func (r *Registry) RegisterAfterFork(key string, hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if indexOf(r.afterFork, key) >= 0 {
		return
	}
	r.afterFork = append(r.afterFork, entry{key: key, hook: func(context.Context) error {
		hook()
		return nil
	}})
}

func (r *Registry) UnregisterAfterFork(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterFork = remove(r.afterFork, key)
}

// RunAfterFork calls the reset hooks in registration order. It may be called any
// number of times.
func (r *Registry) RunAfterFork() {
	r.mu.Lock()
	hooks := make([]entry, len(r.afterFork))
	copy(hooks, r.afterFork)
	r.mu.Unlock()
	for _, e := range hooks {
		e.hook(context.Background())
	}
}

func indexOf(entries []entry, key string) int {
	for i, e := range entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

func remove(entries []entry, key string) []entry {
	i := indexOf(entries, key)
	if i < 0 {
		return entries
	}
	return append(entries[:i:i], entries[i+1:]...)
}

var Default = NewRegistry()

func Register(key string, hook Hook) {
	Default.Register(key, hook)
}

func Unregister(key string) {
	Default.Unregister(key)
}

func Run(ctx context.Context) error {
	return Default.Run(ctx)
}

func RegisterAfterFork(key string, hook func()) {
	Default.RegisterAfterFork(key, hook)
}

func RunAfterFork() {
	Default.RunAfterFork()
}
