package derive

import (
	"sort"
	"time"

	"machine-downtime-backend/internal/model"
	"machine-downtime-backend/internal/parse"
)

type dayKey struct {
	name      string
	operation string
	day       string
}

// Summarize groups detail rows by (name, operation, day) and computes one
// summary per group. Rows whose FromTime is not a valid timestamp are left
// out. Output is ordered by date, name, then operation.
func Summarize(details []model.DetailRecord) []model.SummaryRecord {
	groups := make(map[dayKey][]model.DetailRecord)
	var keys []dayKey

	for _, d := range details {
		if _, err := parse.ParseTimestamp(d.FromTime, time.UTC); err != nil {
			continue
		}
		k := dayKey{name: d.Name, operation: d.Operation, day: d.FromTime[:len(parse.DayLayout)]}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], d)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].operation < keys[j].operation
	})

	out := make([]model.SummaryRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, summarize(k, groups[k]))
	}
	return out
}

func summarize(k dayKey, records []model.DetailRecord) model.SummaryRecord {
	latest := records[0]
	for _, r := range records[1:] {
		if r.FromTime > latest.FromTime {
			latest = r
		}
	}

	var totalMinutes float64
	var nonRun []model.DetailRecord
	for _, r := range records {
		if !IsRun(r.State) {
			nonRun = append(nonRun, r)
			totalMinutes += r.DurationMinutes
		}
	}

	var current float64
	if !IsRun(latest.State) && len(nonRun) > 0 {
		current = openMinutes(nonRun[0])
		for _, r := range nonRun[1:] {
			if m := openMinutes(r); m > current {
				current = m
			}
		}
	}

	return model.SummaryRecord{
		Name:          k.name,
		Operation:     k.operation,
		StartTime:     latest.FromTime,
		Duration:      current / 60,
		TotalDuration: totalMinutes / 60,
		Date:          k.day,
	}
}

// openMinutes prefers an observed closed duration and falls back to the
// operator estimate for intervals that have not closed yet.
func openMinutes(r model.DetailRecord) float64 {
	if r.ToTime != "" && r.DurationMinutes > 0 {
		return r.DurationMinutes
	}
	if v, ok := parse.ParseMinutes(r.EstimateTime); ok {
		return v
	}
	return 0
}
