// Package derive turns raw status events into per-event intervals and
// per-day downtime summaries. Everything here is pure; persistence lives in
// the store package.
package derive

import (
	"sort"
	"strings"
	"time"

	"machine-downtime-backend/internal/model"
	"machine-downtime-backend/internal/parse"
)

// RunState is the only state that does not count as downtime.
const RunState = "Run"

// IsRun reports whether state is the running state, ignoring case.
func IsRun(state string) bool {
	return strings.EqualFold(state, RunState)
}

// Timed drops events without a timestamp and orders the rest by timestamp,
// breaking ties by ID. The input slice is not modified.
func Timed(events []model.RawEvent) []model.RawEvent {
	out := make([]model.RawEvent, 0, len(events))
	for _, e := range events {
		if e.Timestamp != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := *out[i].Timestamp, *out[j].Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Intervals derives one detail record per timestamped event of a single
// machine code. The last record is open (empty ToTime, zero duration).
func Intervals(events []model.RawEvent, loc *time.Location) []model.DetailRecord {
	timed := Timed(events)
	out := make([]model.DetailRecord, 0, len(timed))
	for i := range timed {
		out = append(out, Interval(timed, i, loc))
	}
	return out
}

// Interval derives the record for events[i]. events must already be the
// output of Timed for one machine code.
func Interval(events []model.RawEvent, i int, loc *time.Location) model.DetailRecord {
	cur := events[i]
	rec := model.DetailRecord{
		Name:      cur.MachineName,
		Operation: cur.Operation,
		State:     cur.State,
		FromTime:  parse.FormatTimestamp(*cur.Timestamp, loc),
	}

	if est, ok := EstimateMinutes(cur, loc); ok {
		rec.EstimateTime = parse.FormatEstimate(est)
	}

	if i+1 < len(events) {
		d := ElapsedMinutes(*cur.Timestamp, *events[i+1].Timestamp)
		rec.ToTime = parse.FormatMinutes(d)
		rec.DurationMinutes = d
	}

	return rec
}

// EstimateMinutes interprets the estimate text as a clock offset on the
// event's own calendar day and returns the signed minutes between that
// clock time and the event timestamp.
func EstimateMinutes(e model.RawEvent, loc *time.Location) (float64, bool) {
	if e.Timestamp == nil || e.EstimateText == "" {
		return 0, false
	}
	offset, err := parse.ParseClockOffset(e.EstimateText)
	if err != nil {
		return 0, false
	}
	target := parse.Midnight(*e.Timestamp, loc).Add(offset)
	return target.Sub(*e.Timestamp).Minutes(), true
}

// ElapsedMinutes returns the minutes from one event boundary to the next.
func ElapsedMinutes(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}
