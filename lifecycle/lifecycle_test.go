package lifecycle

import (
	"context"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"testing"
)

func TestRunReverseOrderOnce(t *testing.T) {
	r := NewRegistry()
	var order []string
	for _, key := range []string{"a", "b", "c"} {
		key := key
		r.Register(key, func(context.Context) error {
			order = append(order, key)
			return nil
		})
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"c", "b", "a"}, order)

	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, order, 3)
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	hook := func(context.Context) error {
		calls++
		return nil
	}
	r.Register("writer", hook)
	r.Register("writer", hook)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("writer", func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, r.Registered("writer"))
	r.Unregister("writer")
	r.Unregister("missing")
	assert.False(t, r.Registered("writer"))
	require.NoError(t, r.Run(context.Background()))
	assert.False(t, called)
}

func TestRunCombinesErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(context.Context) error { return errors.New("first") })
	r.Register("b", func(context.Context) error { return nil })
	r.Register("c", func(context.Context) error { return errors.New("second") })

	err := r.Run(context.Background())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "shutdown hook c")
	assert.Contains(t, errs[1].Error(), "first")
}

func TestRunAfterFork(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.RegisterAfterFork("a", func() { order = append(order, "a") })
	r.RegisterAfterFork("b", func() { order = append(order, "b") })
	r.RegisterAfterFork("a", func() { order = append(order, "dup") })

	r.RunAfterFork()
	r.RunAfterFork()
	assert.Equal(t, []string{"a", "b", "a", "b"}, order)

	r.UnregisterAfterFork("a")
	order = nil
	r.RunAfterFork()
	assert.Equal(t, []string{"b"}, order)
}
