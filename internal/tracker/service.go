// Package tracker is the entry point for everything that records or reads
// machine downtime. It validates submissions against the machine registry
// and serializes derivation work per machine code.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"machine-downtime-backend/config"
	"machine-downtime-backend/internal/derive"
	"machine-downtime-backend/internal/model"
	"machine-downtime-backend/internal/notification"
	"machine-downtime-backend/internal/parse"
	"machine-downtime-backend/internal/store"
)

var (
	// ErrMissingField is returned when a required submission field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownMachine is returned for codes absent from the registry.
	ErrUnknownMachine = errors.New("unknown machine code")
)

// Alerter receives an alert whenever a machine enters a non-running state.
type Alerter interface {
	Dispatch(alert notification.Alert)
}

// SubmitRequest is one operator status report.
type SubmitRequest struct {
	MachineCode  string     `json:"machineCode"`
	State        string     `json:"state"`
	EstimateText string     `json:"estimate"`
	Description  string     `json:"description"`
	ImageRef     string     `json:"imageRef"`
	Timestamp    *time.Time `json:"timestamp"`
}

// RebuildResult reports the outcome of a full rebuild.
type RebuildResult struct {
	Details   int           `json:"details"`
	Summaries int           `json:"summaries"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Service coordinates submissions, derivation and read access.
type Service struct {
	store  store.Store
	alerts Alerter
	cfg    config.TrackerConfig
	loc    *time.Location
	log    logrus.FieldLogger
	now    func() time.Time

	// rebuild holds the write side during a full rebuild; all other
	// derivation work holds the read side.
	rebuild sync.RWMutex
	locks   *keyedMutex
}

// NewService creates a Service. alerts may be nil.
func NewService(st store.Store, cfg config.TrackerConfig, alerts Alerter, log logrus.FieldLogger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:  st,
		alerts: alerts,
		cfg:    cfg,
		loc:    loc,
		log:    log.WithField("component", "tracker"),
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
}

// Location returns the timezone detail rows are rendered in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Submit records a status report and derives its detail row.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*model.RawEvent, error) {
	code := strings.TrimSpace(req.MachineCode)
	state := strings.TrimSpace(req.State)
	if code == "" {
		return nil, fmt.Errorf("%w: machineCode", ErrMissingField)
	}
	if state == "" {
		return nil, fmt.Errorf("%w: state", ErrMissingField)
	}

	machine, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}

	ts := req.Timestamp
	if ts == nil {
		now := s.now().In(s.loc)
		ts = &now
	}

	ev := &model.RawEvent{
		MachineCode:  code,
		MachineName:  parse.MachineName(code),
		State:        state,
		Operation:    machine.Operation,
		EstimateText: strings.TrimSpace(req.EstimateText),
		Description:  req.Description,
		ImageRef:     req.ImageRef,
		Timestamp:    ts,
	}

	s.rebuild.RLock()
	defer s.rebuild.RUnlock()
	unlock := s.locks.Lock(code)
	defer unlock()

	if _, err := s.store.RecordEvent(ctx, ev, s.loc); err != nil {
		return nil, fmt.Errorf("failed to record event for %s: %w", code, err)
	}

	s.log.WithFields(logrus.Fields{
		"event_id":     ev.ID,
		"machine_code": code,
		"state":        state,
	}).Info("Recorded status change")

	if s.alerts != nil && !derive.IsRun(state) {
		s.alerts.Dispatch(notification.Alert{
			EventID:     ev.ID,
			MachineCode: code,
			MachineName: ev.MachineName,
			Operation:   ev.Operation,
			State:       state,
			At:          ts.In(s.loc),
		})
	}

	return ev, nil
}

// Process derives the detail row of an existing raw event again. An unknown
// id is not an error and yields a nil result.
func (s *Service) Process(ctx context.Context, id int64) (*store.ApplyResult, error) {
	ev, err := s.store.GetRawEvent(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.rebuild.RLock()
	defer s.rebuild.RUnlock()
	unlock := s.locks.Lock(ev.MachineCode)
	defer unlock()

	return s.store.ApplyEvent(ctx, id, s.loc)
}

// RebuildAll re-derives every detail row and then every daily summary.
func (s *Service) RebuildAll(ctx context.Context) (RebuildResult, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	start := s.now()
	details, err := s.store.RebuildDetails(ctx, s.loc)
	if err != nil {
		return RebuildResult{}, fmt.Errorf("failed to rebuild details: %w", err)
	}
	summaries, err := s.store.AggregateDays(ctx, nil, s.loc)
	if err != nil {
		return RebuildResult{}, fmt.Errorf("failed to aggregate summaries: %w", err)
	}

	res := RebuildResult{Details: details, Summaries: summaries, Elapsed: s.now().Sub(start)}
	s.log.WithFields(logrus.Fields{
		"details":   res.Details,
		"summaries": res.Summaries,
		"elapsed":   res.Elapsed,
	}).Info("Rebuild complete")

	return res, nil
}

// Aggregate recomputes summaries for day, or for all days when day is nil.
func (s *Service) Aggregate(ctx context.Context, day *time.Time) (int, error) {
	s.rebuild.RLock()
	defer s.rebuild.RUnlock()

	return s.store.AggregateDays(ctx, day, s.loc)
}

func (s *Service) ListDetails(ctx context.Context, f store.DetailFilter) (*store.Page[model.DetailRecord], error) {
	f.Paging = s.clamp(f.Paging)
	return s.store.ListDetails(ctx, f)
}

func (s *Service) ListSummaries(ctx context.Context, f store.SummaryFilter) (*store.Page[model.SummaryRecord], error) {
	f.Paging = s.clamp(f.Paging)
	return s.store.ListSummaries(ctx, f)
}

func (s *Service) ListEvents(ctx context.Context, f store.EventFilter) (*store.Page[model.RawEvent], error) {
	f.Paging = s.clamp(f.Paging)
	return s.store.ListEvents(ctx, f)
}

// ValidateCode returns the registered machine for code.
func (s *Service) ValidateCode(ctx context.Context, code string) (*model.Machine, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: machineCode", ErrMissingField)
	}

	m, err := s.store.GetMachineByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMachine, code)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LatestForOperation returns today's most recent event of an operation, or
// nil when the operation has been quiet since midnight.
func (s *Service) LatestForOperation(ctx context.Context, operation string) (*model.RawEvent, error) {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		return nil, fmt.Errorf("%w: operation", ErrMissingField)
	}
	return s.store.LatestEventForOperation(ctx, operation, parse.Midnight(s.now(), s.loc))
}

// RegisterMachines adds or updates registry entries. A repeated code keeps
// its last operation.
func (s *Service) RegisterMachines(ctx context.Context, machines []config.MachineConfig) (int, error) {
	index := make(map[string]int, len(machines))
	var rows []model.Machine
	for _, m := range machines {
		code, op := strings.TrimSpace(m.Code), strings.TrimSpace(m.Operation)
		if code == "" {
			return 0, fmt.Errorf("%w: code", ErrMissingField)
		}
		if op == "" {
			return 0, fmt.Errorf("%w: operation for %s", ErrMissingField, code)
		}
		if i, ok := index[code]; ok {
			rows[i].Operation = op
			continue
		}
		index[code] = len(rows)
		rows = append(rows, model.Machine{Code: code, Operation: op})
	}

	if err := s.store.UpsertMachines(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Service) clamp(p store.Paging) store.Paging {
	return p.Clamp(s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
}
