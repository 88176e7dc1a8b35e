package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ceyewan/discovery/clog"
)

// reloader 单个后台 goroutine 按固定延迟执行重载：首次立即执行，
// 之后每次结束再等待 interval，所以慢的一轮只会推迟下一轮，不会重叠。
type reloader struct {
	interval time.Duration
	clock    clock.Clock
	logger   clog.Logger
	reload   func(ctx context.Context) error

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func newReloader(interval time.Duration, clk clock.Clock, logger clog.Logger, reload func(ctx context.Context) error) *reloader {
	return &reloader{
		interval: interval,
		clock:    clk,
		logger:   logger,
		reload:   reload,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *reloader) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyInitialized
	}
	if r.closed {
		return ErrClosed
	}
	r.started = true
	go r.loop()
	return nil
}

// close 停止调度并等待循环退出，正在进行的一轮会执行完
func (r *reloader) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	started := r.started
	close(r.stop)
	r.mu.Unlock()

	if started {
		<-r.done
	}
}

func (r *reloader) loop() {
	defer close(r.done)
	for {
		r.runOnce()

		timer := r.clock.Timer(r.interval)
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *reloader) runOnce() {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reload panicked", clog.String("panic", fmt.Sprint(p)))
		}
	}()
	// 关闭不会中断进行中的存储调用
	if err := r.reload(context.Background()); err != nil {
		r.logger.Error("reload failed, keeping previous snapshot", clog.Error(err))
	}
}
