package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop is the tick driver. Every tick runs all registered controllers
// exactly once, ordered by priority level.
type Loop struct {
	// Interval is the wall clock period between batches of ticks in Run.
	Interval time.Duration
	// TicksPerInterval is the number of ticks executed per Interval.
	TicksPerInterval uint64

	controllers [PriorityLevels]controllerList

	runners []Runnable

	tick uint64
	lock sync.Mutex
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopCtl struct {
	*Loop
}

type loopIteration struct {
	loopCtl
	ctx           context.Context
	tick          uint64
	priorityLevel int
}

type controllerList struct {
	preHooks    []Controller
	controllers []Controller
	postHooks   []Controller
	lock        sync.Mutex
}

var (
	loopCtxKey = &Loop{}
)

// LoopCtlFrom gets LoopControl from context.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: 10 * time.Millisecond, TicksPerInterval: 1}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lst := &l.controllers[priorityLevel]
	lst.controllers = append(lst.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Tick returns the number of ticks executed so far.
func (l *Loop) Tick() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.tick
}

// Step executes exactly one tick on the calling goroutine.
// Only one goroutine may drive the loop.
func (l *Loop) Step(ctx context.Context) {
	l.lock.Lock()
	tick := l.tick
	l.tick++
	l.lock.Unlock()
	iter := &loopIteration{loopCtl: loopCtl{l}, tick: tick}
	iter.ctx = context.WithValue(ctx, loopCtxKey, iter)
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		l.controllers[i].run(iter)
	}
}

// RunTicks executes n ticks back to back, stopping early if ctx is done.
func (l *Loop) RunTicks(ctx context.Context, n uint64) error {
	for ; n > 0; n-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Step(ctx)
	}
	return nil
}

// Run implements Runnable. Runnables are started in the background and
// ticks are paced against wall clock. The loop stops as soon as any
// Runnable fails and returns the errors of all Runnables.
func (l *Loop) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, &loopCtl{l}))
	runner.Go(l.runners...)
	defer func() {
		cancel()
		if werr := runner.Wait(); werr != nil {
			err = werr
		}
	}()

	interval := l.Interval
	if interval == 0 {
		interval = 10 * time.Millisecond
	}
	batch := l.TicksPerInterval
	if batch == 0 {
		batch = 1
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-runner.Failed():
			return nil
		case <-ticker.C:
			if err := l.RunTicks(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

// PreRunAt implements LoopControl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.controllers[priorityLevel]
	lst.lock.Lock()
	lst.preHooks = append(lst.preHooks, hooks...)
	lst.lock.Unlock()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.controllers[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, hooks...)
	lst.lock.Unlock()
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Tick() uint64 {
	return t.tick
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (t *loopIteration) PostRun(hooks ...Controller) {
	t.PostRunAt(t.priorityLevel, hooks...)
}

func (c *controllerList) run(iter *loopIteration) {
	c.lock.Lock()
	ctls := c.preHooks
	c.preHooks = nil
	c.lock.Unlock()
	runControllers(iter, ctls)
	runControllers(iter, c.controllers)
	c.lock.Lock()
	ctls, c.postHooks = c.postHooks, nil
	c.lock.Unlock()
	runControllers(iter, ctls)
}

func runControllers(iter *loopIteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error at tick %d: %v", iter.tick, err)
		}
	}
}
