package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/store"
)

// ActorEngine is the audit actor recorded for transitions the engine
// performs on its own, as opposed to operator-initiated ones.
const ActorEngine = "engine"

// Dispatcher scans the store for ready tasks and hands them to method
// executors under a bounded worker pool. Claiming is a compare-and-set
// in the store, so running several dispatcher processes against the
// same database is safe even though one is the normal deployment.
type Dispatcher struct {
	tasks     store.TaskStore
	selector  *MethodSelector
	retry     *RetryController
	recorder  *audit.Recorder
	feed      events.Publisher
	executors map[domain.DeletionMethod]MethodExecutor
	logger    *slog.Logger

	dispatchInterval  time.Duration
	heartbeatInterval time.Duration
	staleClaimAge     time.Duration

	workerCap atomic.Int32
	inFlight  atomic.Int32
	paused    atomic.Bool

	// siteBusy tracks site domains with an automated attempt in flight.
	// At most one automated worker may touch a given site at a time;
	// email attempts are not serialized.
	siteMu   sync.Mutex
	siteBusy map[string]struct{}

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. The executors slice is keyed by
// the method each executor reports; tasks selecting a method with no
// registered executor are left untouched in the store.
func NewDispatcher(
	cfg config.EngineConfig,
	tasks store.TaskStore,
	selector *MethodSelector,
	retry *RetryController,
	recorder *audit.Recorder,
	feed events.Publisher,
	executors []MethodExecutor,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	byMethod := make(map[domain.DeletionMethod]MethodExecutor, len(executors))
	for _, exec := range executors {
		byMethod[exec.Method()] = exec
	}

	d := &Dispatcher{
		tasks:             tasks,
		selector:          selector,
		retry:             retry,
		recorder:          recorder,
		feed:              feed,
		executors:         byMethod,
		logger:            log.With(slog.String("component", "dispatcher")),
		dispatchInterval:  cfg.DispatchInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		staleClaimAge:     cfg.StaleClaimAge,
		siteBusy:          make(map[string]struct{}),
	}
	d.workerCap.Store(int32(cfg.WorkerCount))
	return d
}

// Run recovers abandoned claims from a previous process, then scans for
// ready tasks on the dispatch interval until the context is cancelled.
// It blocks; callers run it in a goroutine. In-flight workers are waited
// for before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.RecoverStaleClaims(ctx, time.Now().UTC()); err != nil {
		d.logger.Error("stale claim recovery failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(d.dispatchInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		slog.Int("worker_cap", int(d.workerCap.Load())),
		slog.Duration("dispatch_interval", d.dispatchInterval))

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if d.paused.Load() {
				continue
			}
			if err := d.dispatchOnce(ctx); err != nil {
				d.logger.Error("dispatch scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

// dispatchOnce claims and launches as many ready tasks as the remaining
// pool capacity allows. Tasks it cannot run this round (pool full, site
// already busy, no executor for the method) simply stay ready and are
// seen again on the next scan.
func (d *Dispatcher) dispatchOnce(ctx context.Context) error {
	capacity := int(d.workerCap.Load() - d.inFlight.Load())
	if capacity <= 0 {
		return nil
	}

	now := time.Now().UTC()

	// Over-fetch so site-gated tasks at the head of the queue do not
	// starve dispatchable ones behind them.
	ready, err := d.tasks.ListReady(ctx, now, capacity*2)
	if err != nil {
		return fmt.Errorf("listing ready tasks: %w", err)
	}

	for _, task := range ready {
		if capacity <= 0 {
			return nil
		}
		if task.Method == domain.MethodManual {
			continue
		}

		method := d.selector.Select(ctx, task)
		if _, ok := d.executors[method]; !ok {
			continue
		}
		if method == domain.MethodAutomated && !d.acquireSite(task.SiteDomain) {
			continue
		}

		claimed, err := d.tasks.Claim(ctx, task.ID, now)
		if err != nil {
			d.releaseSiteIf(method, task.SiteDomain)
			d.logger.Error("claim failed",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		if !claimed {
			d.releaseSiteIf(method, task.SiteDomain)
			continue
		}

		capacity--
		d.inFlight.Add(1)
		d.wg.Add(1)
		go d.runTask(ctx, task, method)
	}

	return nil
}

// runTask executes one claimed task to its next state. The claim was
// already taken; this method owns releasing the site gate and the pool
// slot.
func (d *Dispatcher) runTask(ctx context.Context, task *domain.DeletionTask, method domain.DeletionMethod) {
	defer d.wg.Done()
	defer d.inFlight.Add(-1)
	defer d.releaseSiteIf(method, task.SiteDomain)

	from := task.Status
	task.Status = domain.TaskStatusInProgress

	d.recorder.Record(ctx, &task.ID, domain.AuditActionTaskClaimed, ActorEngine,
		map[string]interface{}{
			"method":  string(method),
			"attempt": task.Attempts + 1,
		})
	d.feed.Publish(events.NewTransitionEvent(task, from, "claimed"))

	if method != task.Method {
		prior := task.Method
		task.Method = method
		d.recorder.Record(ctx, &task.ID, domain.AuditActionMethodSwitched, ActorEngine,
			map[string]interface{}{
				"from": string(prior),
				"to":   string(method),
			})
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go d.heartbeat(hbCtx, task.ID)

	outcome := d.executors[method].Execute(ctx, task)
	stopHeartbeat()

	now := time.Now().UTC()
	transition := d.retry.Apply(task, outcome, now)
	task.HeartbeatAt = nil

	if err := d.tasks.Update(ctx, task); err != nil {
		d.logger.Error("failed to persist task outcome",
			slog.String("task_id", task.ID.String()),
			slog.String("outcome", outcome.Kind.String()),
			slog.String("error", err.Error()))
		return
	}

	d.recorder.Record(ctx, &task.ID, transition.AuditAction, ActorEngine, transition.Detail)
	d.feed.Publish(events.NewTransitionEvent(task, domain.TaskStatusInProgress, string(outcome.Reason)))
}

// heartbeat refreshes the task's claim liveness until the work finishes.
func (d *Dispatcher) heartbeat(ctx context.Context, taskID uuid.UUID) {
	ticker := time.NewTicker(d.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.tasks.Heartbeat(ctx, taskID, time.Now().UTC()); err != nil {
				d.logger.Warn("heartbeat failed",
					slog.String("task_id", taskID.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

// RecoverStaleClaims requeues in_progress tasks whose heartbeat went
// silent, which happens when a previous process died mid-attempt. The
// interrupted attempt counts as a transient failure and goes through
// the retry controller, so a task at its attempt budget fails terminal
// instead of re-entering dispatch over budget.
func (d *Dispatcher) RecoverStaleClaims(ctx context.Context, now time.Time) error {
	stale, err := d.tasks.ListStaleClaims(ctx, d.staleClaimAge, now)
	if err != nil {
		return fmt.Errorf("listing stale claims: %w", err)
	}

	for _, task := range stale {
		from := task.Status
		outcome := TransientFailure(domain.ReasonUnknown,
			"claim abandoned, worker heartbeat went silent")
		transition := d.retry.Apply(task, outcome, now)
		task.HeartbeatAt = nil

		if err := d.tasks.Update(ctx, task); err != nil {
			d.logger.Error("failed to requeue stale claim",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
			continue
		}

		d.recorder.Record(ctx, &task.ID, domain.AuditActionStaleRequeued, ActorEngine,
			map[string]interface{}{
				"attempts":  task.Attempts,
				"exhausted": transition.AuditAction == domain.AuditActionAttemptsExhausted,
			})
		d.feed.Publish(events.NewTransitionEvent(task, from, "stale claim requeued"))
	}

	if len(stale) > 0 {
		d.logger.Info("requeued stale claims", slog.Int("count", len(stale)))
	}
	return nil
}

// Pause stops new claims. In-flight attempts run to completion.
func (d *Dispatcher) Pause(ctx context.Context, actor string) {
	if d.paused.Swap(true) {
		return
	}
	d.logger.Info("dispatch paused", slog.String("actor", actor))
	d.recorder.Record(ctx, nil, domain.AuditActionDispatchPaused, actor, nil)
}

// Resume re-enables claiming after a pause.
func (d *Dispatcher) Resume(ctx context.Context, actor string) {
	if !d.paused.Swap(false) {
		return
	}
	d.logger.Info("dispatch resumed", slog.String("actor", actor))
	d.recorder.Record(ctx, nil, domain.AuditActionDispatchResumed, actor, nil)
}

// Paused reports whether claiming is currently suspended.
func (d *Dispatcher) Paused() bool {
	return d.paused.Load()
}

// InFlight reports the number of attempts currently executing.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Reconfigure applies new engine tunables without a restart. The pool
// cap change takes effect on the next scan; a shrink never interrupts
// attempts already in flight. Out-of-range values are rejected.
func (d *Dispatcher) Reconfigure(cfg config.EngineConfig) error {
	if cfg.WorkerCount < 1 || cfg.WorkerCount > 10 {
		return fmt.Errorf("worker count %d out of range [1,10]", cfg.WorkerCount)
	}
	d.workerCap.Store(int32(cfg.WorkerCount))
	d.retry.Reconfigure(cfg)
	d.logger.Info("dispatcher reconfigured", slog.Int("worker_cap", cfg.WorkerCount))
	return nil
}

func (d *Dispatcher) acquireSite(domainName string) bool {
	d.siteMu.Lock()
	defer d.siteMu.Unlock()
	if _, busy := d.siteBusy[domainName]; busy {
		return false
	}
	d.siteBusy[domainName] = struct{}{}
	return true
}

func (d *Dispatcher) releaseSiteIf(method domain.DeletionMethod, domainName string) {
	if method != domain.MethodAutomated {
		return
	}
	d.siteMu.Lock()
	delete(d.siteBusy, domainName)
	d.siteMu.Unlock()
}
