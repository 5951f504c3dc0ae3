// Package maintenance owns scheduled and unscheduled maintenance windows and
// answers whether a check's alerts are suppressed at a point in time
package maintenance

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/store"
	"github.com/flapjack/flapjack/subsystem"
)

// Manager serves maintenance queries and mutations for the pipeline
type Manager struct {
	store store.Store
}

// Setup creates a maintenance manager
func Setup(st store.Store) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("maintenance manager %w", subsystem.ErrNilStore)
	}
	return &Manager{store: st}, nil
}

// InScheduled reports whether any scheduled window covers t
func (m *Manager) InScheduled(ctx context.Context, checkID string, t int64) (bool, error) {
	w, err := m.activeScheduled(ctx, checkID, t)
	return w != nil, err
}

// InUnscheduled reports whether an unscheduled window covers t
func (m *Manager) InUnscheduled(ctx context.Context, checkID string, t int64) (bool, error) {
	w, err := m.CurrentUnscheduled(ctx, checkID, t)
	return w != nil, err
}

// InMaintenance reports whether either suppressor is active at t; the two
// window kinds are independent
func (m *Manager) InMaintenance(ctx context.Context, checkID string, t int64) (bool, error) {
	sched, err := m.InScheduled(ctx, checkID, t)
	if err != nil {
		return false, err
	}
	if sched {
		return true, nil
	}
	return m.InUnscheduled(ctx, checkID, t)
}

// CurrentUnscheduled returns the open unscheduled window covering t, or nil
func (m *Manager) CurrentUnscheduled(ctx context.Context, checkID string, t int64) (*data.UnscheduledMaintenance, error) {
	ids, err := m.store.SortedRange(ctx, data.CheckUnscheduledKey(checkID), 0, float64(t))
	if err != nil {
		return nil, err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		var w data.UnscheduledMaintenance
		if err := m.store.Get(ctx, data.ClassUnscheduledMaintenance, ids[i], &w); err != nil {
			// self-heal a dangling window reference
			log.Errorf(log.MaintenanceMgr, "Maintenance: dropping dangling unscheduled window %s on check %s: %v",
				ids[i], checkID, err)
			_ = m.store.SortedRemove(ctx, data.CheckUnscheduledKey(checkID), ids[i])
			continue
		}
		if w.ActiveAt(t) {
			return &w, nil
		}
	}
	return nil, nil
}

func (m *Manager) activeScheduled(ctx context.Context, checkID string, t int64) (*data.ScheduledMaintenance, error) {
	ids, err := m.store.SortedRange(ctx, data.CheckScheduledKey(checkID), 0, float64(t))
	if err != nil {
		return nil, err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		var w data.ScheduledMaintenance
		if err := m.store.Get(ctx, data.ClassScheduledMaintenance, ids[i], &w); err != nil {
			log.Errorf(log.MaintenanceMgr, "Maintenance: dropping dangling scheduled window %s on check %s: %v",
				ids[i], checkID, err)
			_ = m.store.SortedRemove(ctx, data.CheckScheduledKey(checkID), ids[i])
			continue
		}
		if w.ActiveAt(t) {
			return &w, nil
		}
	}
	return nil, nil
}

// ScheduleMaintenance declares a suppression window [start, end) over a
// check. Overlapping scheduled windows are permitted.
func (m *Manager) ScheduleMaintenance(ctx context.Context, checkID string, start, end int64, summary string) (*data.ScheduledMaintenance, error) {
	if end <= start {
		return nil, fmt.Errorf("maintenance: window end %d not after start %d", end, start)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	w := &data.ScheduledMaintenance{
		ID:        id.String(),
		CheckID:   checkID,
		StartTime: start,
		EndTime:   end,
		Summary:   summary,
	}
	err = m.store.Lock(ctx, []string{data.ClassCheck, data.ClassScheduledMaintenance}, func(ctx context.Context) error {
		if err := m.store.Save(ctx, w); err != nil {
			return err
		}
		return m.store.SortedAdd(ctx, data.CheckScheduledKey(checkID), float64(start), w.ID)
	})
	if err != nil {
		return nil, err
	}
	log.Infof(log.MaintenanceMgr, "Maintenance: scheduled window [%d, %d) opened on check %s", start, end, checkID)
	return w, nil
}

// EndScheduled ends a scheduled window at the supplied time. Ending before
// the window opened deletes it outright; ending mid-window truncates it and
// re-arms alerting so the next unhealthy sample notifies again. Ending an
// already-closed window reports false.
func (m *Manager) EndScheduled(ctx context.Context, checkID, windowID string, at int64) (bool, error) {
	var ended bool
	err := m.store.Lock(ctx, []string{data.ClassCheck, data.ClassScheduledMaintenance, data.ClassRoute}, func(ctx context.Context) error {
		var w data.ScheduledMaintenance
		if err := m.store.Get(ctx, data.ClassScheduledMaintenance, windowID, &w); err != nil {
			return err
		}
		switch {
		case at <= w.StartTime:
			if err := m.store.SortedRemove(ctx, data.CheckScheduledKey(checkID), windowID); err != nil {
				return err
			}
			if err := m.store.Delete(ctx, &w); err != nil {
				return err
			}
		case at < w.EndTime:
			w.EndTime = at
			if err := m.store.Save(ctx, &w); err != nil {
				return err
			}
			if err := ClearAlertingRoutes(ctx, m.store, checkID); err != nil {
				return err
			}
		default:
			return nil
		}
		ended = true
		return nil
	})
	return ended, err
}

// Acknowledge opens an unscheduled window [now, now+duration) over a failing
// check, truncating any open window, and clears the alerting flags so repeat
// problems stay quiet for the duration. Acknowledging a healthy check or a
// zero duration is a no-op.
func (m *Manager) Acknowledge(ctx context.Context, chk *data.Check, now, duration int64, summary string) (bool, error) {
	if chk == nil || !chk.Failing || duration <= 0 {
		return false, nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return false, err
	}
	w := &data.UnscheduledMaintenance{
		ID:        id.String(),
		CheckID:   chk.ID,
		StartTime: now,
		EndTime:   now + duration,
		Summary:   summary,
	}
	err = m.store.Lock(ctx, []string{data.ClassCheck, data.ClassUnscheduledMaintenance, data.ClassRoute}, func(ctx context.Context) error {
		current, err := m.CurrentUnscheduled(ctx, chk.ID, now)
		if err != nil {
			return err
		}
		if current != nil {
			current.EndTime = now
			if err := m.store.Save(ctx, current); err != nil {
				return err
			}
		}
		if err := m.store.Save(ctx, w); err != nil {
			return err
		}
		if err := m.store.SortedAdd(ctx, data.CheckUnscheduledKey(chk.ID), float64(now), w.ID); err != nil {
			return err
		}
		if err := ClearAlertingRoutes(ctx, m.store, chk.ID); err != nil {
			return err
		}
		return ClearAlertingMedia(ctx, m.store, chk.ID)
	})
	if err != nil {
		return false, err
	}
	log.Infof(log.MaintenanceMgr, "Maintenance: check %s acknowledged for %ds", chk.ID, duration)
	return true, nil
}

// ClearAlertingRoutes drops the is_alerting flag on every route
// materialized for a check
func ClearAlertingRoutes(ctx context.Context, st store.Store, checkID string) error {
	routeIDs, err := st.SetMembers(ctx, data.CheckRoutesKey(checkID))
	if err != nil {
		return err
	}
	for _, rid := range routeIDs {
		var rt data.Route
		if err := st.Get(ctx, data.ClassRoute, rid, &rt); err != nil {
			log.Errorf(log.MaintenanceMgr, "Maintenance: dropping dangling route %s on check %s: %v", rid, checkID, err)
			_ = st.RemoveFromSet(ctx, data.CheckRoutesKey(checkID), rid)
			continue
		}
		if !rt.IsAlerting {
			continue
		}
		rt.IsAlerting = false
		if err := st.Save(ctx, &rt); err != nil {
			return err
		}
	}
	return nil
}

// ClearAlertingMedia empties a check's alerting media set on both sides of
// the relation
func ClearAlertingMedia(ctx context.Context, st store.Store, checkID string) error {
	mediumIDs, err := st.SortedRange(ctx, data.CheckAlertingMediaKey(checkID), 0, float64(maxSeverityScore))
	if err != nil {
		return err
	}
	for _, mid := range mediumIDs {
		if err := st.RemoveFromSet(ctx, data.MediumAlertingChecksKey(mid), checkID); err != nil {
			return err
		}
	}
	return st.ClearKey(ctx, data.CheckAlertingMediaKey(checkID))
}

// maxSeverityScore bounds severity-scored range scans over alerting media
const maxSeverityScore = 16
