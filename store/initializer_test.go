package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type provisionFunc func(ctx context.Context) error

func (f provisionFunc) Provision(ctx context.Context) error { return f(ctx) }

func TestInitializerRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	p := provisionFunc(func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("table not ready")
		}
		return nil
	})

	initializer := NewInitializer(p, ProvisionConfig{Attempts: 5, Backoff: 0})
	initializer.Start(context.Background())
	initializer.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.True(t, initializer.Wait(ctx))
	assert.True(t, initializer.Wait(ctx), "wait is repeatable")
	assert.Equal(t, int32(3), calls.Load())
	assert.NoError(t, initializer.Err())
}

func TestInitializerGivesUp(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("unreachable")
	initializer := NewInitializer(provisionFunc(func(context.Context) error {
		calls.Add(1)
		return boom
	}), ProvisionConfig{Attempts: 3, Backoff: time.Millisecond})
	initializer.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.False(t, initializer.Wait(ctx))
	assert.Equal(t, int32(3), calls.Load())
	assert.ErrorIs(t, initializer.Err(), boom)
}

func TestInitializerWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	initializer := NewInitializer(provisionFunc(func(context.Context) error {
		<-release
		return nil
	}), ProvisionConfig{})
	initializer.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, initializer.Wait(ctx))
	assert.NoError(t, initializer.Err(), "not finished yet")
}

func TestInitializerDefaults(t *testing.T) {
	initializer := NewInitializer(provisionFunc(func(context.Context) error { return nil }), ProvisionConfig{})
	assert.Equal(t, 30, initializer.cfg.Attempts)
	assert.Equal(t, time.Duration(0), initializer.cfg.Backoff)
	assert.Equal(t, DefaultProvisionConfig(), ProvisionConfig{Attempts: 30, Backoff: time.Second})
}
