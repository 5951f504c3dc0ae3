package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/store"
	"github.com/flapjack/flapjack/subsystem"
)

// NotificationQueue is the internal queue the processor hands notifications
// over on
const NotificationQueue = "notifications"

// pollInterval bounds blocking queue reads so shutdown stays responsive
const pollInterval = time.Second

// Manager resolves notifications into alerts and runs the per-medium
// dispatch worker pools
type Manager struct {
	started  int32
	shutdown chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	cfg        config.NotifierConfig
	gatewayCfg map[string]config.GatewayConfig

	store    store.Store
	queue    store.Queue
	gateways map[data.MediumType]base.Gateway
	limiters map[data.MediumType]*rate.Limiter

	notificationsProcessed int64
	alertsEnqueued         int64
	alertsDelivered        int64
	transientFailures      int64
	permanentFailures      int64
}

// Stats is a point-in-time snapshot of the notifier counters
type Stats struct {
	NotificationsProcessed int64 `json:"notifications_processed"`
	AlertsEnqueued         int64 `json:"alerts_enqueued"`
	AlertsDelivered        int64 `json:"alerts_delivered"`
	TransientFailures      int64 `json:"transient_failures"`
	PermanentFailures      int64 `json:"permanent_failures"`
}

// Setup creates a notifier manager
func Setup(cfg *config.Config, st store.Store, q store.Queue, gws map[data.MediumType]base.Gateway) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notifier manager %w", subsystem.ErrNilConfig)
	}
	if st == nil || q == nil {
		return nil, fmt.Errorf("notifier manager %w", subsystem.ErrNilStore)
	}
	if len(gws) == 0 {
		return nil, config.ErrNoGatewaysEnabled
	}
	m := &Manager{
		shutdown:   make(chan struct{}),
		cfg:        cfg.Notifier,
		gatewayCfg: cfg.EnabledGateways(),
		store:      st,
		queue:      q,
		gateways:   gws,
		limiters:   make(map[data.MediumType]*rate.Limiter),
	}
	for name, gwCfg := range m.gatewayCfg {
		if gwCfg.RateLimit > 0 {
			m.limiters[data.MediumType(name)] = rate.NewLimiter(rate.Limit(gwCfg.RateLimit), 1)
		}
	}
	return m, nil
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
		return fmt.Errorf("notifier manager %w", subsystem.ErrNil)
	}
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return fmt.Errorf("notifier manager %w", subsystem.ErrAlreadyStarted)
	}
	log.Debugf(log.NotifierMgr, "Notifier manager %s", subsystem.MsgStarting)
	m.shutdown = make(chan struct{})
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.run()

	for name, gwCfg := range m.gatewayCfg {
		mt := data.MediumType(name)
		gw, ok := m.gateways[mt]
		if !ok {
			continue
		}
		for i := 0; i < gwCfg.Workers; i++ {
			m.wg.Add(1)
			go m.dispatchWorker(mt, gw, gwCfg)
		}
		log.Debugf(log.NotifierMgr, "Notifier: %d dispatch workers started for %s on queue %s",
			gwCfg.Workers, name, gwCfg.Queue)
	}
	log.Debugf(log.NotifierMgr, "Notifier manager %s", subsystem.MsgStarted)
	return nil
}

// Stop attempts to shutdown the subsystem; in-flight deliveries get
// shutdown_grace seconds before their contexts are cancelled
func (m *Manager) Stop() error {
	if m == nil {
		return fmt.Errorf("notifier manager %w", subsystem.ErrNil)
	}
	if atomic.LoadInt32(&m.started) == 0 {
		return fmt.Errorf("notifier manager %w", subsystem.ErrNotStarted)
	}
	defer func() {
		atomic.CompareAndSwapInt32(&m.started, 1, 0)
	}()
	log.Debugf(log.NotifierMgr, "Notifier manager %s", subsystem.MsgShuttingDown)
	close(m.shutdown)

	grace := time.AfterFunc(time.Duration(m.cfg.ShutdownGrace)*time.Second, m.cancel)
	m.wg.Wait()
	grace.Stop()
	m.cancel()
	log.Debugf(log.NotifierMgr, "Notifier manager %s", subsystem.MsgShutdown)
	return nil
}

// Stats returns a snapshot of the notifier counters
func (m *Manager) Stats() Stats {
	return Stats{
		NotificationsProcessed: atomic.LoadInt64(&m.notificationsProcessed),
		AlertsEnqueued:         atomic.LoadInt64(&m.alertsEnqueued),
		AlertsDelivered:        atomic.LoadInt64(&m.alertsDelivered),
		TransientFailures:      atomic.LoadInt64(&m.transientFailures),
		PermanentFailures:      atomic.LoadInt64(&m.permanentFailures),
	}
}

// run pulls notifications and fans them out into per-medium alert queues
func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.shutdown:
			return
		default:
		}
		payload, err := m.queue.BlockingPop(m.ctx, NotificationQueue, pollInterval)
		if err != nil {
			if errors.Is(err, store.ErrQueueEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Errorf(log.NotifierMgr, "Notifier: notification queue read failed: %v", err)
			continue
		}
		var n data.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: dropping undecodable notification: %v", err)
			continue
		}
		if err := m.ProcessNotification(m.ctx, &n); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: notification %s for check %s failed: %v", n.ID, n.CheckID, err)
			continue
		}
		atomic.AddInt64(&m.notificationsProcessed, 1)
	}
}

// ProcessNotification resolves one notification and enqueues its alerts. The
// alert set is written under one lock so readers of alerting media see a
// consistent snapshot once the notification completes.
func (m *Manager) ProcessNotification(ctx context.Context, n *data.Notification) error {
	classes := []string{data.ClassCheck, data.ClassRoute, data.ClassRule,
		data.ClassContact, data.ClassMedium, data.ClassAlert}
	err := m.store.Lock(ctx, classes, func(ctx context.Context) error {
		res, err := m.Resolve(ctx, n)
		if err != nil {
			return err
		}
		for _, alert := range res.Alerts {
			if err := m.EnqueueAlert(ctx, alert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	// the notification record is a work item; drop it once its alerts are
	// safely queued
	if n.ID != "" {
		if err := m.store.Delete(ctx, n); err != nil {
			log.Warnf(log.NotifierMgr, "Notifier: could not delete notification %s: %v", n.ID, err)
		}
	}
	return nil
}

// EnqueueAlert persists an alert and pushes it onto its medium's queue
func (m *Manager) EnqueueAlert(ctx context.Context, alert *data.Alert) error {
	gwCfg, ok := m.gatewayCfg[string(alert.MediumType)]
	if !ok {
		log.Warnf(log.NotifierMgr, "Notifier: no gateway configured for medium %s; dropping alert for check %s",
			alert.MediumType, alert.CheckName)
		return nil
	}
	if err := m.store.Save(ctx, alert); err != nil {
		return err
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := m.queue.Push(ctx, gwCfg.Queue, payload); err != nil {
		return err
	}
	atomic.AddInt64(&m.alertsEnqueued, 1)
	return nil
}

// dispatchWorker drains one medium's alert queue through its transport
func (m *Manager) dispatchWorker(mt data.MediumType, gw base.Gateway, gwCfg config.GatewayConfig) {
	defer m.wg.Done()
	for {
		select {
		case <-m.shutdown:
			return
		default:
		}

		// surface retries whose backoff has elapsed
		due, err := m.queue.PopDue(m.ctx, gwCfg.Queue, time.Now())
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf(log.NotifierMgr, "Notifier: retry scan for %s failed: %v", mt, err)
		}
		for _, payload := range due {
			if err := m.queue.Push(context.Background(), gwCfg.Queue, payload); err != nil {
				log.Errorf(log.NotifierMgr, "Notifier: requeue for %s failed: %v", mt, err)
			}
		}

		payload, err := m.queue.BlockingPop(m.ctx, gwCfg.Queue, pollInterval)
		if err != nil {
			if errors.Is(err, store.ErrQueueEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Errorf(log.NotifierMgr, "Notifier: alert queue read for %s failed: %v", mt, err)
			continue
		}
		var alert data.Alert
		if err := json.Unmarshal(payload, &alert); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: dropping undecodable alert on %s: %v", gwCfg.Queue, err)
			continue
		}
		m.deliver(&alert, gw, gwCfg)
	}
}

func (m *Manager) deliver(alert *data.Alert, gw base.Gateway, gwCfg config.GatewayConfig) {
	if lim, ok := m.limiters[alert.MediumType]; ok {
		if err := lim.Wait(m.ctx); err != nil {
			// shutting down; the alert stays queued for next startup
			_ = m.queue.Push(context.Background(), gwCfg.Queue, mustMarshal(alert))
			return
		}
	}

	ctx, cancel := context.WithTimeout(m.ctx, time.Duration(gwCfg.Timeout)*time.Second)
	outcome := gw.Deliver(ctx, alert)
	cancel()

	switch outcome {
	case base.Delivered:
		atomic.AddInt64(&m.alertsDelivered, 1)
		log.Infof(log.NotifierMgr, "Notifier: %s alert for check %s delivered to contact %s",
			alert.Type, alert.CheckName, alert.ContactID)
		m.disposeAlert(alert)
	case base.TransientFailure:
		alert.Attempts++
		if alert.Attempts >= m.cfg.MaxAttempts {
			atomic.AddInt64(&m.permanentFailures, 1)
			log.Errorf(log.NotifierMgr, "Notifier: alert %s for check %s dropped after %d attempts",
				alert.ID, alert.CheckName, alert.Attempts)
			m.disposeAlert(alert)
			return
		}
		atomic.AddInt64(&m.transientFailures, 1)
		delay := m.backoff(alert.Attempts)
		log.Warnf(log.NotifierMgr, "Notifier: alert %s attempt %d failed; retrying in %s",
			alert.ID, alert.Attempts, delay)
		// park on a fresh context; m.ctx may already be cancelled during
		// shutdown and the popped alert must not be lost
		if err := m.queue.PushDelayed(context.Background(), gwCfg.Queue, mustMarshal(alert), time.Now().Add(delay)); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: could not park alert %s for retry: %v", alert.ID, err)
		}
	case base.PermanentFailure:
		// the check stays in alerting_media so the next event can retry
		atomic.AddInt64(&m.permanentFailures, 1)
		log.Errorf(log.NotifierMgr, "Notifier: alert %s for check %s permanently failed", alert.ID, alert.CheckName)
		m.disposeAlert(alert)
	}
}

func (m *Manager) disposeAlert(alert *data.Alert) {
	if err := m.store.Delete(context.Background(), alert); err != nil {
		log.Warnf(log.NotifierMgr, "Notifier: could not delete alert %s: %v", alert.ID, err)
	}
}

func (m *Manager) backoff(attempts int) time.Duration {
	d := time.Duration(1<<uint(attempts)) * time.Second
	max := time.Duration(m.cfg.MaxBackoff) * time.Second
	if d > max {
		d = max
	}
	return d
}

func mustMarshal(alert *data.Alert) []byte {
	payload, err := json.Marshal(alert)
	if err != nil {
		// alerts are plain data; this cannot fail at runtime
		panic(err)
	}
	return payload
}
