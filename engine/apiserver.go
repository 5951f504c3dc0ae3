package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/event"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/notifier"
	"github.com/flapjack/flapjack/processor"
	"github.com/flapjack/flapjack/store"
	"github.com/flapjack/flapjack/subsystem"
)

// maxRequestBody bounds admin request payloads
const maxRequestBody = 1 << 20

// shutdownTimeout bounds the drain of in-flight admin requests on Stop
const shutdownTimeout = 5 * time.Second

// APIServer is the administrative control surface subsystem
type APIServer struct {
	started int32
	engine  *Engine
	cfg     config.APIServerConfig
	server  *http.Server
}

// route binds one admin operation to a method and path
type route struct {
	name    string
	method  string
	pattern string
	handler http.HandlerFunc
}

// SetupAPIServer creates the admin server subsystem
func SetupAPIServer(cfg *config.Config, e *Engine) (*APIServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api server %w", subsystem.ErrNilConfig)
	}
	if e == nil {
		return nil, fmt.Errorf("api server %w", subsystem.ErrNil)
	}
	return &APIServer{engine: e, cfg: cfg.APIServer}, nil
}

// IsRunning safely checks whether the subsystem is running
func (s *APIServer) IsRunning() bool {
	if s == nil {
		return false
	}
	return atomic.LoadInt32(&s.started) == 1
}

// Start runs the subsystem
func (s *APIServer) Start() error {
	if s == nil {
		return fmt.Errorf("api server %w", subsystem.ErrNil)
	}
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return fmt.Errorf("api server %w", subsystem.ErrAlreadyStarted)
	}
	log.Debugf(log.APIServerMgr, "API server %s", subsystem.MsgStarting)
	s.server = &http.Server{
		Addr:    s.cfg.ListenAddress,
		Handler: s.newRouter(),
	}
	go func() {
		log.Infof(log.APIServerMgr, "API server listening on http://%s", s.cfg.ListenAddress)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf(log.APIServerMgr, "API server failed: %v", err)
			atomic.StoreInt32(&s.started, 0)
		}
	}()
	log.Debugf(log.APIServerMgr, "API server %s", subsystem.MsgStarted)
	return nil
}

// Stop attempts to shutdown the subsystem, draining in-flight requests
func (s *APIServer) Stop() error {
	if s == nil {
		return fmt.Errorf("api server %w", subsystem.ErrNil)
	}
	if atomic.LoadInt32(&s.started) == 0 {
		return fmt.Errorf("api server %w", subsystem.ErrNotStarted)
	}
	defer func() {
		atomic.CompareAndSwapInt32(&s.started, 1, 0)
	}()
	log.Debugf(log.APIServerMgr, "API server %s", subsystem.MsgShuttingDown)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	log.Debugf(log.APIServerMgr, "API server %s", subsystem.MsgShutdown)
	return nil
}

func (s *APIServer) newRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	routes := []route{
		{"IngestEvent", http.MethodPost, "/events", s.ingestEvent},
		{"CurrentState", http.MethodGet, "/checks/{checkID}", s.currentState},
		{"Acknowledge", http.MethodPost, "/checks/{checkID}/acknowledgements", s.acknowledge},
		{"ScheduleMaintenance", http.MethodPost, "/checks/{checkID}/scheduled_maintenances", s.scheduleMaintenance},
		{"EndMaintenance", http.MethodDelete, "/checks/{checkID}/scheduled_maintenances/{windowID}", s.endMaintenance},
		{"TestNotification", http.MethodPost, "/checks/{checkID}/test_notifications", s.testNotification},
		{"Status", http.MethodGet, "/status", s.status},
	}
	for i := range routes {
		router.
			Methods(routes[i].method).
			Path(routes[i].pattern).
			Name(routes[i].name).
			Handler(requestLogger(routes[i].handler, routes[i].name))
	}
	return router
}

// requestLogger logs each admin request with its handler name and duration
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)
		log.Debugf(log.APIServerMgr, "%s %s %s %s", r.Method, r.RequestURI, name, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Errorf(log.APIServerMgr, "API server: response encode failed: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ingestEvent validates one event payload and queues it for the processor
func (s *APIServer) ingestEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := event.Parse(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Store.Push(r.Context(), s.engine.Config.Processor.EventQueue, payload); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"check": e.CheckName(),
		"type":  string(e.Type),
	})
}

type checkStateResponse struct {
	Check                    *data.Check `json:"check"`
	CurrentState             *data.State `json:"current_state,omitempty"`
	InScheduledMaintenance   bool        `json:"in_scheduled_maintenance"`
	InUnscheduledMaintenance bool        `json:"in_unscheduled_maintenance"`
}

func (s *APIServer) lookupCheck(ctx context.Context, w http.ResponseWriter, checkID string) *data.Check {
	var chk data.Check
	err := s.engine.Store.Get(ctx, data.ClassCheck, checkID, &chk)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("check %s not found", checkID))
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil
	}
	return &chk
}

func (s *APIServer) currentState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chk := s.lookupCheck(ctx, w, mux.Vars(r)["checkID"])
	if chk == nil {
		return
	}
	resp := checkStateResponse{Check: chk}
	if chk.CurrentStateID != "" {
		var st data.State
		if err := s.engine.Store.Get(ctx, data.ClassState, chk.CurrentStateID, &st); err == nil {
			resp.CurrentState = &st
		}
	}
	now := time.Now().Unix()
	var err error
	if resp.InScheduledMaintenance, err = s.engine.Maintenance.InScheduled(ctx, chk.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if resp.InUnscheduledMaintenance, err = s.engine.Maintenance.InUnscheduled(ctx, chk.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type acknowledgeRequest struct {
	Duration int64  `json:"duration"`
	Summary  string `json:"summary"`
}

// acknowledge queues an acknowledgement action event; the processor stays
// the only writer of check state
func (s *APIServer) acknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chk := s.lookupCheck(ctx, w, mux.Vars(r)["checkID"])
	if chk == nil {
		return
	}
	var req acknowledgeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Duration <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("duration must be positive"))
		return
	}
	e := event.Event{
		Entity:            chk.Name,
		Type:              event.TypeAction,
		State:             event.StateAcknowledgement,
		Summary:           req.Summary,
		Time:              time.Now().Unix(),
		Duration:          req.Duration,
		AcknowledgementID: chk.AckHash(),
	}
	if e.Summary == "" {
		e.Summary = "acknowledged via API"
	}
	payload, err := json.Marshal(&e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.engine.Store.Push(ctx, s.engine.Config.Processor.EventQueue, payload); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"check": chk.Name})
}

type scheduleMaintenanceRequest struct {
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Summary   string `json:"summary"`
}

func (s *APIServer) scheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chk := s.lookupCheck(ctx, w, mux.Vars(r)["checkID"])
	if chk == nil {
		return
	}
	var req scheduleMaintenanceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	window, err := s.engine.Maintenance.ScheduleMaintenance(ctx, chk.ID, req.StartTime, req.EndTime, req.Summary)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, window)
}

func (s *APIServer) endMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	chk := s.lookupCheck(ctx, w, vars["checkID"])
	if chk == nil {
		return
	}
	at := time.Now().Unix()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid at %q", raw))
			return
		}
		at = parsed
	}
	ended, err := s.engine.Maintenance.EndScheduled(ctx, chk.ID, vars["windowID"], at)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}

type testNotificationRequest struct {
	ContactID string `json:"contact_id,omitempty"`
}

// testNotification bypasses the state machine and exercises the contact's
// routes end to end
func (s *APIServer) testNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chk := s.lookupCheck(ctx, w, mux.Vars(r)["checkID"])
	if chk == nil {
		return
	}
	var req testNotificationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := uuid.NewV4()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	n := &data.Notification{
		ID:        id.String(),
		CheckID:   chk.ID,
		CheckName: chk.Name,
		Type:      data.NotificationTest,
		Severity:  data.ConditionCritical,
		Timestamp: time.Now().Unix(),
		Summary:   fmt.Sprintf("test notification for %s", chk.Name),
		ContactID: req.ContactID,
	}
	payload, err := json.Marshal(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.engine.Store.Push(ctx, notifier.NotificationQueue, payload); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"notification_id": n.ID})
}

type statusResponse struct {
	Uptime     string          `json:"uptime"`
	Subsystems map[string]bool `json:"subsystems"`
	Processor  processor.Stats `json:"processor"`
	Notifier   notifier.Stats  `json:"notifier"`
}

func (s *APIServer) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Uptime: time.Since(s.engine.Uptime).Round(time.Second).String(),
		Subsystems: map[string]bool{
			"processor":  s.engine.Processor.IsRunning(),
			"notifier":   s.engine.Notifier.IsRunning(),
			"api_server": s.IsRunning(),
		},
		Processor: s.engine.Processor.Stats(),
		Notifier:  s.engine.Notifier.Stats(),
	})
}
