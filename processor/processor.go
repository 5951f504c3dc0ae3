// Package processor applies inbound events to checks, deciding when a
// failure is real enough to notify
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/event"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/maintenance"
	"github.com/flapjack/flapjack/notifier"
	"github.com/flapjack/flapjack/store"
	"github.com/flapjack/flapjack/subsystem"
)

// pollInterval bounds blocking queue reads so shutdown stays responsive
const pollInterval = time.Second

// Manager is the check processor subsystem: one logical actor that owns all
// writes to checks on this instance
type Manager struct {
	started  int32
	shutdown chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	cfg      config.ProcessorConfig
	store    store.Store
	queue    store.Queue
	receiver *Receiver
	maint    *maintenance.Manager

	processed            int64
	dropped              int64
	checksCreated        int64
	notificationsEmitted int64
}

// Stats is a point-in-time snapshot of the processor counters
type Stats struct {
	Processed            int64 `json:"processed"`
	Rejected             int64 `json:"rejected"`
	Dropped              int64 `json:"dropped"`
	ChecksCreated        int64 `json:"checks_created"`
	NotificationsEmitted int64 `json:"notifications_emitted"`
}

// Setup creates a processor manager
func Setup(cfg *config.Config, st store.Store, q store.Queue, maint *maintenance.Manager) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processor manager %w", subsystem.ErrNilConfig)
	}
	if st == nil || q == nil {
		return nil, fmt.Errorf("processor manager %w", subsystem.ErrNilStore)
	}
	if maint == nil {
		return nil, fmt.Errorf("processor manager %w", subsystem.ErrNil)
	}
	return &Manager{
		shutdown: make(chan struct{}),
		cfg:      cfg.Processor,
		store:    st,
		queue:    q,
		receiver: NewReceiver(q, cfg.Processor.EventQueue),
		maint:    maint,
	}, nil
}

// IsRunning safely checks whether the subsystem is running
func (m *Manager) IsRunning() bool {
	if m == nil {
		return false
	}
	return atomic.LoadInt32(&m.started) == 1
}

// Start runs the subsystem
func (m *Manager) Start() error {
	if m == nil {
		return fmt.Errorf("processor manager %w", subsystem.ErrNil)
	}
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return fmt.Errorf("processor manager %w", subsystem.ErrAlreadyStarted)
	}
	log.Debugf(log.ProcessorMgr, "Processor manager %s", subsystem.MsgStarting)
	m.shutdown = make(chan struct{})
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.run()
	log.Debugf(log.ProcessorMgr, "Processor manager %s", subsystem.MsgStarted)
	return nil
}

// Stop attempts to shutdown the subsystem, completing the in-flight event
func (m *Manager) Stop() error {
	if m == nil {
		return fmt.Errorf("processor manager %w", subsystem.ErrNil)
	}
	if atomic.LoadInt32(&m.started) == 0 {
		return fmt.Errorf("processor manager %w", subsystem.ErrNotStarted)
	}
	defer func() {
		atomic.CompareAndSwapInt32(&m.started, 1, 0)
	}()
	log.Debugf(log.ProcessorMgr, "Processor manager %s", subsystem.MsgShuttingDown)
	close(m.shutdown)
	m.wg.Wait()
	m.cancel()
	log.Debugf(log.ProcessorMgr, "Processor manager %s", subsystem.MsgShutdown)
	return nil
}

// Stats returns a snapshot of the processor counters
func (m *Manager) Stats() Stats {
	return Stats{
		Processed:            atomic.LoadInt64(&m.processed),
		Rejected:             m.receiver.Rejected(),
		Dropped:              atomic.LoadInt64(&m.dropped),
		ChecksCreated:        atomic.LoadInt64(&m.checksCreated),
		NotificationsEmitted: atomic.LoadInt64(&m.notificationsEmitted),
	}
}

// run consumes the inbound event queue serially; per-check ordering is
// preserved because a single loop owns every check mutation
func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.shutdown:
			return
		default:
		}
		e, err := m.receiver.Receive(m.ctx, pollInterval)
		if err != nil {
			if errors.Is(err, store.ErrQueueEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Errorf(log.ProcessorMgr, "Processor: event queue read failed: %v", err)
			continue
		}
		if err := m.ProcessEvent(m.ctx, e); err != nil {
			log.Errorf(log.ProcessorMgr, "Processor: event for %s failed: %v", e.CheckName(), err)
			continue
		}
		m.receiver.Ack(e)
		atomic.AddInt64(&m.processed, 1)
	}
}

// ProcessEvent atomically applies one event to its check and emits zero or
// one notification
func (m *Manager) ProcessEvent(ctx context.Context, e *event.Event) error {
	chk, err := m.resolveCheck(ctx, e)
	if err != nil {
		return err
	}
	if chk == nil {
		atomic.AddInt64(&m.dropped, 1)
		return nil
	}
	if e.IsAcknowledgement() {
		return m.processAcknowledgement(ctx, chk, e)
	}
	return m.processState(ctx, chk.ID, e)
}

// resolveCheck looks a check up by the event's combined name, auto-creating
// it when configured; nil means the event is dropped
func (m *Manager) resolveCheck(ctx context.Context, e *event.Event) (*data.Check, error) {
	name := e.CheckName()
	id, err := m.store.FindByIndex(ctx, data.ClassCheck, "name", name)
	if err == nil {
		var chk data.Check
		if err := m.store.Get(ctx, data.ClassCheck, id, &chk); err != nil {
			return nil, err
		}
		if !chk.Enabled {
			log.Debugf(log.ProcessorMgr, "Processor: check %s is disabled; dropping event", name)
			return nil, nil
		}
		return &chk, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if !m.cfg.AutoCreateChecks {
		log.Debugf(log.ProcessorMgr, "Processor: no check named %s; dropping event", name)
		return nil, nil
	}
	return m.createCheck(ctx, e)
}

func (m *Manager) createCheck(ctx context.Context, e *event.Event) (*data.Check, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	chk := &data.Check{
		ID:                  id.String(),
		Name:                e.CheckName(),
		Enabled:             true,
		InitialFailureDelay: m.cfg.InitialFailureDelay,
		RepeatFailureDelay:  m.cfg.RepeatFailureDelay,
	}
	err = m.store.Lock(ctx, []string{data.ClassCheck, data.ClassRoute}, func(ctx context.Context) error {
		if err := m.store.Save(ctx, chk); err != nil {
			return err
		}
		if len(e.Tags) != 0 {
			for _, tag := range e.Tags {
				if err := m.store.AddToSet(ctx, data.CheckTagsKey(chk.ID), tag); err != nil {
					return err
				}
				if err := m.store.AddToSet(ctx, data.TagChecksKey(tag), chk.ID); err != nil {
					return err
				}
			}
		}
		return notifier.RecomputeRoutes(ctx, m.store, chk)
	})
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&m.checksCreated, 1)
	log.Infof(log.ProcessorMgr, "Processor: created check %s (%s)", chk.Name, chk.ID)

	if d := m.cfg.NewCheckScheduledMaintenanceDuration; d > 0 {
		now := e.Time
		if _, err := m.maint.ScheduleMaintenance(ctx, chk.ID, now, now+int64(d), "new check"); err != nil {
			return nil, err
		}
	}
	return chk, nil
}

func (m *Manager) processAcknowledgement(ctx context.Context, chk *data.Check, e *event.Event) error {
	ok, err := m.maint.Acknowledge(ctx, chk, e.Time, e.Duration, e.Summary)
	if err != nil {
		return err
	}
	if !ok {
		log.Debugf(log.ProcessorMgr, "Processor: acknowledgement for %s ignored", chk.Name)
		return nil
	}
	n, err := m.newNotification(chk, data.NotificationAcknowledgement, chk.Condition, e.Time, e.Summary, e.Details)
	if err != nil {
		return err
	}
	if err := m.emit(ctx, n); err != nil {
		return err
	}
	chk.NotificationCount++
	return m.store.Save(ctx, chk)
}

// processState runs the transition table for a service or metric sample
// under one logical transaction over the check and its satellites
func (m *Manager) processState(ctx context.Context, checkID string, e *event.Event) error {
	classes := []string{data.ClassCheck, data.ClassState, data.ClassRoute, data.ClassNotification}
	return m.store.Lock(ctx, classes, func(ctx context.Context) error {
		var chk data.Check
		if err := m.store.Get(ctx, data.ClassCheck, checkID, &chk); err != nil {
			return err
		}

		if e.InitialFailureDelay != nil && *e.InitialFailureDelay >= 0 {
			chk.InitialFailureDelay = *e.InitialFailureDelay
		}
		if e.RepeatFailureDelay != nil && *e.RepeatFailureDelay >= 0 {
			chk.RepeatFailureDelay = *e.RepeatFailureDelay
		}
		if e.Tags != nil {
			if err := m.applyTags(ctx, &chk, e.Tags); err != nil {
				return err
			}
		}

		// the state sequence is strictly monotonic; duplicates and
		// stale samples are dropped, keeping ingestion idempotent
		if chk.CurrentStateID != "" {
			var cur data.State
			err := m.store.Get(ctx, data.ClassState, chk.CurrentStateID, &cur)
			switch {
			case err == nil && e.Time < cur.CreatedAt:
				atomic.AddInt64(&m.dropped, 1)
				log.Debugf(log.ProcessorMgr, "Processor: stale sample for %s (t=%d < %d)", chk.Name, e.Time, cur.CreatedAt)
				return nil
			case err == nil && e.Time == cur.CreatedAt:
				atomic.AddInt64(&m.dropped, 1)
				return nil
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		newCond := e.Condition()
		prevUnhealthy := chk.Condition.IsUnhealthy()

		stateID, err := uuid.NewV4()
		if err != nil {
			return err
		}
		st := &data.State{
			ID:        stateID.String(),
			CheckID:   chk.ID,
			Condition: newCond,
			CreatedAt: e.Time,
			Summary:   e.Summary,
			Details:   e.Details,
		}
		if err := m.store.Save(ctx, st); err != nil {
			return err
		}
		if err := m.store.SortedAdd(ctx, data.CheckStatesKey(chk.ID), float64(e.Time), st.ID); err != nil {
			return err
		}

		chk.CurrentStateID = st.ID
		chk.Condition = newCond
		chk.Failing = newCond.IsUnhealthy()

		var n *data.Notification
		switch {
		case !prevUnhealthy && !chk.Failing:
			// healthy to healthy: record the sample only
		case !prevUnhealthy && chk.Failing:
			chk.FailingStreak = 1
			chk.FailingSince = e.Time
			chk.MostSevere = newCond
			chk.ProblemAlerted = false
			chk.LastProblemAlert = 0
			n, err = m.maybeProblem(ctx, &chk, e, newCond, false)
		case prevUnhealthy && chk.Failing:
			chk.FailingStreak++
			escalated := newCond.WorseThan(chk.MostSevere)
			if escalated {
				chk.MostSevere = newCond
			}
			n, err = m.maybeProblem(ctx, &chk, e, newCond, escalated)
		default:
			// recovery ends the failure episode; it is emitted even
			// during maintenance so downstream state resets
			chk.FailingStreak = 0
			chk.FailingSince = 0
			chk.MostSevere = ""
			chk.ProblemAlerted = false
			chk.LastProblemAlert = 0
			n, err = m.newNotification(&chk, data.NotificationRecovery, newCond, e.Time, e.Summary, e.Details)
		}
		if err != nil {
			return err
		}

		if n != nil {
			if err := m.emit(ctx, n); err != nil {
				return err
			}
			chk.NotificationCount++
		}
		return m.store.Save(ctx, &chk)
	})
}

// maybeProblem applies the hold-down, repeat throttle, escalation override
// and maintenance suppression to a candidate problem notification
func (m *Manager) maybeProblem(ctx context.Context, chk *data.Check, e *event.Event, cond data.Condition, escalated bool) (*data.Notification, error) {
	// escalation overrides both the hold-down and the repeat throttle
	if !escalated && e.Time-chk.FailingSince < int64(chk.InitialFailureDelay) {
		return nil, nil
	}
	if !escalated && chk.ProblemAlerted && e.Time-chk.LastProblemAlert < int64(chk.RepeatFailureDelay) {
		return nil, nil
	}

	suppressed, err := m.maint.InMaintenance(ctx, chk.ID, e.Time)
	if err != nil {
		return nil, err
	}
	if suppressed {
		log.Debugf(log.ProcessorMgr, "Processor: %s is in maintenance; problem suppressed", chk.Name)
		return nil, maintenance.ClearAlertingRoutes(ctx, m.store, chk.ID)
	}

	chk.ProblemAlerted = true
	chk.LastProblemAlert = e.Time
	n, err := m.newNotification(chk, data.NotificationProblem, cond, e.Time, e.Summary, e.Details)
	if err != nil {
		return nil, err
	}
	n.Escalated = escalated
	return n, nil
}

func (m *Manager) newNotification(chk *data.Check, typ data.NotificationType, sev data.Condition, ts int64, summary, details string) (*data.Notification, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &data.Notification{
		ID:        id.String(),
		CheckID:   chk.ID,
		CheckName: chk.Name,
		StateID:   chk.CurrentStateID,
		Type:      typ,
		Severity:  sev,
		Timestamp: ts,
		Summary:   summary,
		Details:   details,
	}, nil
}

// emit persists a notification and hands it to the notifier
func (m *Manager) emit(ctx context.Context, n *data.Notification) error {
	if err := m.store.Save(ctx, n); err != nil {
		return err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := m.queue.Push(ctx, notifier.NotificationQueue, payload); err != nil {
		return err
	}
	atomic.AddInt64(&m.notificationsEmitted, 1)
	log.Infof(log.ProcessorMgr, "Processor: %s notification emitted for %s (%s)", n.Type, n.CheckName, n.Severity)
	return nil
}

// applyTags reconciles the check's tag set with an event override and
// recomputes routes when membership changed
func (m *Manager) applyTags(ctx context.Context, chk *data.Check, tags []string) error {
	current, err := m.store.SetMembers(ctx, data.CheckTagsKey(chk.ID))
	if err != nil {
		return err
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, t := range current {
		have[t] = struct{}{}
	}

	var changed bool
	for t := range want {
		if _, ok := have[t]; ok {
			continue
		}
		if err := m.store.AddToSet(ctx, data.CheckTagsKey(chk.ID), t); err != nil {
			return err
		}
		if err := m.store.AddToSet(ctx, data.TagChecksKey(t), chk.ID); err != nil {
			return err
		}
		changed = true
	}
	for t := range have {
		if _, ok := want[t]; ok {
			continue
		}
		if err := m.store.RemoveFromSet(ctx, data.CheckTagsKey(chk.ID), t); err != nil {
			return err
		}
		if err := m.store.RemoveFromSet(ctx, data.TagChecksKey(t), chk.ID); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return notifier.RecomputeRoutes(ctx, m.store, chk)
}
