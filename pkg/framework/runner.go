package framework

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
	pkgerrors "github.com/pkg/errors"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// ErrForcedExit is returned by Runner.Wait when a second stop signal
// arrives before all Runnables have stopped.
var ErrForcedExit = errors.New("forced exit")

// Runner runs Runnables in the background and collects their errors.
type Runner struct {
	Context context.Context

	names    []string
	errCh    chan runResult
	exitCh   chan struct{}
	failCh   chan struct{}
	failOnce sync.Once
}

type runResult struct {
	name string
	err  error
}

// NewRunner creates a Runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner with ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan runResult, 1),
		exitCh:  make(chan struct{}),
		failCh:  make(chan struct{}),
	}
}

// Failed is closed when the first Runnable stops with an error other than
// cancellation.
func (r *Runner) Failed() <-chan struct{} {
	return r.failCh
}

func isStopErr(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// HandleSignals cancels the Runner context on SIGINT or SIGTERM. A second
// signal makes Wait return ErrForcedExit immediately.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go starts Runnables with the Runner context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	return r.GoWith(r.Context, runnables...)
}

// GoWith starts Runnables with ctx.
func (r *Runner) GoWith(ctx context.Context, runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := strconv.Itoa(len(r.names))
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.names = append(r.names, name)
		glog.V(4).Infof("Runner[%s] starting", name)
		go func(runnable Runnable, name string) {
			err := runnable.Run(ctx)
			if isStopErr(err) {
				glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			} else {
				glog.Errorf("Runner[%s] failed: %v", name, err)
				r.failOnce.Do(func() { close(r.failCh) })
			}
			r.errCh <- runResult{name: name, err: err}
		}(runnable, name)
	}
	return r
}

// Wait waits for all Runnables to stop. Cancellation is not an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.names {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.errCh:
			if isStopErr(res.err) {
				continue
			}
			errs.Add(pkgerrors.Wrap(res.err, res.name))
		}
	}
	return errs.Aggregate()
}
