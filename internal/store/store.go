package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"machine-downtime-backend/internal/derive"
	"machine-downtime-backend/internal/model"
	"machine-downtime-backend/internal/parse"
)

const batchSize = 500

// Store defines the interface for all database operations.
type Store interface {
	// Raw events.
	CreateRawEvent(ctx context.Context, ev *model.RawEvent) error
	GetRawEvent(ctx context.Context, id int64) (*model.RawEvent, error)
	ListEvents(ctx context.Context, f EventFilter) (*Page[model.RawEvent], error)
	LatestEventForOperation(ctx context.Context, operation string, since time.Time) (*model.RawEvent, error)

	// Derivation.
	RecordEvent(ctx context.Context, ev *model.RawEvent, loc *time.Location) (*ApplyResult, error)
	ApplyEvent(ctx context.Context, id int64, loc *time.Location) (*ApplyResult, error)
	RebuildDetails(ctx context.Context, loc *time.Location) (int, error)
	AggregateDays(ctx context.Context, day *time.Time, loc *time.Location) (int, error)

	// Derived tables.
	ListDetails(ctx context.Context, f DetailFilter) (*Page[model.DetailRecord], error)
	ListSummaries(ctx context.Context, f SummaryFilter) (*Page[model.SummaryRecord], error)

	// Machine registry.
	UpsertMachines(ctx context.Context, machines []model.Machine) error
	GetMachineByCode(ctx context.Context, code string) (*model.Machine, error)

	// Push subscriptions.
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, codes []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Compile-time interface check.
var _ Store = (*gormStore)(nil)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log logrus.FieldLogger) Store {
	return &gormStore{
		db:  db,
		log: log.WithField("component", "store"),
	}
}

// --- Raw events ---

func (s *gormStore) CreateRawEvent(ctx context.Context, ev *model.RawEvent) error {
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to create raw event for %s: %w", ev.MachineCode, err)
	}
	return nil
}

func (s *gormStore) GetRawEvent(ctx context.Context, id int64) (*model.RawEvent, error) {
	var ev model.RawEvent
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get raw event %d: %w", id, err)
	}
	return &ev, nil
}

func (s *gormStore) ListEvents(ctx context.Context, f EventFilter) (*Page[model.RawEvent], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if f.MachineCode != "" {
			db = db.Where("machine_code LIKE ?", contains(f.MachineCode))
		}
		if f.State != "" {
			db = db.Where("state LIKE ?", contains(f.State))
		}
		if f.Operation != "" {
			db = db.Where("operation LIKE ?", contains(f.Operation))
		}
		if f.From != nil {
			db = db.Where("event_time >= ?", *f.From)
		}
		if f.To != nil {
			db = db.Where("event_time <= ?", *f.To)
		}
		return db
	}
	return paginate[model.RawEvent](s.db.WithContext(ctx), scope, "event_time DESC, id DESC", f.Paging)
}

// LatestEventForOperation returns the newest event of an operation at or
// after since, or nil when there is none.
func (s *gormStore) LatestEventForOperation(ctx context.Context, operation string, since time.Time) (*model.RawEvent, error) {
	var ev model.RawEvent
	err := s.db.WithContext(ctx).
		Where("operation = ? AND event_time >= ?", operation, since).
		Order("event_time DESC, id DESC").
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest event for operation %s: %w", operation, err)
	}
	return &ev, nil
}

// --- Derivation ---

// RecordEvent inserts a raw event and applies it in the same transaction,
// so a failed derivation leaves no raw row behind.
func (s *gormStore) RecordEvent(ctx context.Context, ev *model.RawEvent, loc *time.Location) (*ApplyResult, error) {
	var result *ApplyResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("failed to create raw event for %s: %w", ev.MachineCode, err)
		}
		res, err := s.applyEvent(tx, ev.ID, loc)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ApplyEvent derives the detail row of one raw event, backfills the open
// end of the preceding row and re-aggregates the affected days, all in one
// transaction. A missing event or one without a timestamp is a no-op and
// yields a nil result.
func (s *gormStore) ApplyEvent(ctx context.Context, id int64, loc *time.Location) (*ApplyResult, error) {
	var result *ApplyResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.applyEvent(tx, id, loc)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *gormStore) applyEvent(tx *gorm.DB, id int64, loc *time.Location) (*ApplyResult, error) {
	var ev model.RawEvent
	if err := tx.First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithField("event_id", id).Debug("Raw event not found, nothing to apply")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load raw event %d: %w", id, err)
	}
	if ev.Timestamp == nil {
		s.log.WithField("event_id", id).Debug("Raw event has no timestamp, nothing to apply")
		return nil, nil
	}

	var siblings []model.RawEvent
	if err := tx.Where("machine_code = ? AND event_time IS NOT NULL", ev.MachineCode).
		Find(&siblings).Error; err != nil {
		return nil, fmt.Errorf("failed to load events for machine %s: %w", ev.MachineCode, err)
	}

	events := derive.Timed(siblings)
	i := indexOf(events, ev.ID)
	if i < 0 {
		return nil, fmt.Errorf("raw event %d missing from machine %s history", ev.ID, ev.MachineCode)
	}

	detail, created, err := upsertDetail(tx, derive.Interval(events, i, loc))
	if err != nil {
		return nil, err
	}
	res := &ApplyResult{Event: ev, Detail: detail, Created: created}
	if ev.EstimateText != "" && detail.EstimateTime == "" {
		s.log.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"estimate": ev.EstimateText,
		}).Debug("Unparseable estimate, leaving it empty")
	}

	if i > 0 {
		prev, err := backfillDetail(tx, derive.Interval(events, i-1, loc))
		if err != nil {
			return nil, err
		}
		res.Backfilled = prev
	}

	day := parse.Midnight(*ev.Timestamp, loc)
	res.Summaries, err = aggregate(tx, &day, loc)
	if err != nil {
		return nil, err
	}

	// A predecessor closed across midnight changes its own day's totals.
	if res.Backfilled != nil {
		from, err := parse.ParseTimestamp(res.Backfilled.FromTime, loc)
		if err == nil && parse.Day(from, loc) != parse.Day(day, loc) {
			prevDay := parse.Midnight(from, loc)
			sums, err := aggregate(tx, &prevDay, loc)
			if err != nil {
				return nil, err
			}
			res.Summaries = append(sums, res.Summaries...)
		}
	}

	return res, nil
}

// upsertDetail inserts rec or, when its natural key exists, refreshes only
// the end of the interval.
func upsertDetail(tx *gorm.DB, rec model.DetailRecord) (model.DetailRecord, bool, error) {
	var existing model.DetailRecord
	err := naturalKey(tx, rec).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&rec).Error; err != nil {
			return rec, false, fmt.Errorf("failed to create detail for %s at %s: %w", rec.Name, rec.FromTime, err)
		}
		return rec, true, nil
	case err != nil:
		return rec, false, fmt.Errorf("failed to look up detail for %s at %s: %w", rec.Name, rec.FromTime, err)
	}

	if err := tx.Model(&existing).Updates(map[string]any{
		"to_time":          rec.ToTime,
		"duration_minutes": rec.DurationMinutes,
	}).Error; err != nil {
		return existing, false, fmt.Errorf("failed to update detail %d: %w", existing.ID, err)
	}
	existing.ToTime = rec.ToTime
	existing.DurationMinutes = rec.DurationMinutes
	return existing, false, nil
}

// backfillDetail closes the stored row matching prev when it is still open.
// It returns the updated row, or nil when nothing changed.
func backfillDetail(tx *gorm.DB, prev model.DetailRecord) (*model.DetailRecord, error) {
	var existing model.DetailRecord
	err := naturalKey(tx, prev).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up previous detail for %s at %s: %w", prev.Name, prev.FromTime, err)
	}
	if !existing.Open() {
		return nil, nil
	}

	if err := tx.Model(&existing).Updates(map[string]any{
		"to_time":          prev.ToTime,
		"duration_minutes": prev.DurationMinutes,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to backfill detail %d: %w", existing.ID, err)
	}
	existing.ToTime = prev.ToTime
	existing.DurationMinutes = prev.DurationMinutes
	return &existing, nil
}

// RebuildDetails discards every detail row and derives them again from the
// raw events. It returns the number of rows written. Summaries are left
// untouched.
func (s *gormStore) RebuildDetails(ctx context.Context, loc *time.Location) (int, error) {
	var written int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.DetailRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear details: %w", err)
		}

		var events []model.RawEvent
		if err := tx.Where("event_time IS NOT NULL").
			Order("machine_code, event_time, id").
			Find(&events).Error; err != nil {
			return fmt.Errorf("failed to load raw events: %w", err)
		}

		groups := groupByMachine(events)
		derived := make([][]model.DetailRecord, len(groups))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.NumCPU())
		for i, group := range groups {
			i, group := i, group
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				derived[i] = derive.Intervals(group, loc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to derive details: %w", err)
		}

		details := dedupeDetails(derived)
		if len(details) == 0 {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   detailKeyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"estimate_time", "to_time", "duration_minutes"}),
		}).CreateInBatches(&details, batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert details: %w", err)
		}

		written = len(details)
		s.log.WithFields(logrus.Fields{
			"machines": len(groups),
			"details":  written,
		}).Info("Rebuilt detail table")
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// AggregateDays recomputes summaries for one day, or for every day when day
// is nil. It returns the number of summary rows written.
func (s *gormStore) AggregateDays(ctx context.Context, day *time.Time, loc *time.Location) (int, error) {
	var written int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sums, err := aggregate(tx, day, loc)
		written = len(sums)
		return err
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

func aggregate(tx *gorm.DB, day *time.Time, loc *time.Location) ([]model.SummaryRecord, error) {
	q := tx.Model(&model.DetailRecord{})
	if day != nil {
		q = q.Where("from_time LIKE ?", parse.Day(*day, loc)+"%")
	}

	var details []model.DetailRecord
	if err := q.Order("id").Find(&details).Error; err != nil {
		return nil, fmt.Errorf("failed to load details for aggregation: %w", err)
	}

	sums := derive.Summarize(details)
	if len(sums) == 0 {
		return sums, nil
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "operation"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_time", "duration", "total_duration"}),
	}).CreateInBatches(&sums, batchSize).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert summaries: %w", err)
	}
	return sums, nil
}

// --- Derived tables ---

func (s *gormStore) ListDetails(ctx context.Context, f DetailFilter) (*Page[model.DetailRecord], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if f.Name != "" {
			db = db.Where("name LIKE ?", contains(f.Name))
		}
		if f.Operation != "" {
			db = db.Where("operation LIKE ?", contains(f.Operation))
		}
		if f.State != "" {
			db = db.Where("state LIKE ?", contains(f.State))
		}
		if f.From != nil {
			db = db.Where("from_time >= ?", f.From.Format(parse.TimestampLayout))
		}
		if f.To != nil {
			db = db.Where("from_time <= ?", f.To.Format(parse.TimestampLayout))
		}
		return db
	}
	return paginate[model.DetailRecord](s.db.WithContext(ctx), scope, "from_time DESC, id DESC", f.Paging)
}

func (s *gormStore) ListSummaries(ctx context.Context, f SummaryFilter) (*Page[model.SummaryRecord], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if f.Name != "" {
			db = db.Where("name LIKE ?", contains(f.Name))
		}
		if f.Operation != "" {
			db = db.Where("operation LIKE ?", contains(f.Operation))
		}
		if f.From != nil {
			db = db.Where("date >= ?", f.From.Format(parse.DayLayout))
		}
		if f.To != nil {
			db = db.Where("date <= ?", f.To.Format(parse.DayLayout))
		}
		return db
	}
	return paginate[model.SummaryRecord](s.db.WithContext(ctx), scope, "date DESC, name ASC, operation ASC", f.Paging)
}

// --- Machine registry ---

// UpsertMachines registers machines by code, refreshing the operation of
// codes that already exist.
func (s *gormStore) UpsertMachines(ctx context.Context, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}

	s.log.WithField("count", len(machines)).Info("Batch upserting machines")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"operation", "updated_at"}),
		}).Create(&machines).Error; err != nil {
			return fmt.Errorf("batch upsert machines failed: %w", err)
		}
		return nil
	})
}

func (s *gormStore) GetMachineByCode(ctx context.Context, code string) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to get machine %s: %w", code, err)
	}
	return &m, nil
}

// --- Helpers ---

var detailKeyColumns = []clause.Column{{Name: "name"}, {Name: "operation"}, {Name: "state"}, {Name: "from_time"}}

func naturalKey(tx *gorm.DB, rec model.DetailRecord) *gorm.DB {
	return tx.Where("name = ? AND operation = ? AND state = ? AND from_time = ?",
		rec.Name, rec.Operation, rec.State, rec.FromTime)
}

func paginate[T any](db *gorm.DB, scope func(*gorm.DB) *gorm.DB, order string, p Paging) (*Page[T], error) {
	page, size := p.normalize()

	var total int64
	if err := db.Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	var items []T
	if err := db.Model(new(T)).Scopes(scope).
		Order(order).
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}

	return NewPage(items, total, page, size), nil
}

func contains(s string) string {
	return "%" + s + "%"
}

func indexOf(events []model.RawEvent, id int64) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// groupByMachine splits events already ordered by machine code into one
// slice per code.
func groupByMachine(events []model.RawEvent) [][]model.RawEvent {
	var groups [][]model.RawEvent
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].MachineCode != events[start].MachineCode {
			groups = append(groups, events[start:i])
			start = i
		}
	}
	return groups
}

// dedupeDetails flattens derived groups, keeping the last record for any
// repeated natural key.
func dedupeDetails(groups [][]model.DetailRecord) []model.DetailRecord {
	type key struct{ name, operation, state, from string }

	index := make(map[key]int)
	var out []model.DetailRecord
	for _, group := range groups {
		for _, rec := range group {
			k := key{rec.Name, rec.Operation, rec.State, rec.FromTime}
			if i, ok := index[k]; ok {
				out[i] = rec
				continue
			}
			index[k] = len(out)
			out = append(out, rec)
		}
	}
	return out
}
