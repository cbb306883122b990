package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-downtime-backend/internal/model"
)

func detail(state, from, estimate, to string, minutes float64) model.DetailRecord {
	return model.DetailRecord{
		Name:            "#1",
		Operation:       "OP-A",
		State:           state,
		FromTime:        from,
		EstimateTime:    estimate,
		ToTime:          to,
		DurationMinutes: minutes,
	}
}

func TestSummarize_EndsRunning(t *testing.T) {
	got := Summarize([]model.DetailRecord{
		detail("Run", "2024-05-01 08:00:00", "", "30", 30),
		detail("Down", "2024-05-01 08:30:00", "30.00", "40", 40),
		detail("Run", "2024-05-01 09:10:00", "", "", 0),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01", got[0].Date)
	assert.Equal(t, "2024-05-01 09:10:00", got[0].StartTime)
	assert.Zero(t, got[0].Duration)
	assert.InDelta(t, 40.0/60, got[0].TotalDuration, 1e-9)
}

func TestSummarize_OpenDownUsesEstimate(t *testing.T) {
	got := Summarize([]model.DetailRecord{
		detail("Run", "2024-05-01 08:00:00", "", "30", 30),
		detail("Down", "2024-05-01 08:30:00", "15", "", 0),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01 08:30:00", got[0].StartTime)
	assert.InDelta(t, 0.25, got[0].Duration, 1e-9)
	assert.Zero(t, got[0].TotalDuration)
}

func TestSummarize_CurrentIsMaxOverNonRun(t *testing.T) {
	got := Summarize([]model.DetailRecord{
		detail("Down", "2024-05-01 07:00:00", "", "90", 90),
		detail("Run", "2024-05-01 08:30:00", "", "10", 10),
		detail("Setup", "2024-05-01 08:40:00", "", "", 0),
	})

	require.Len(t, got, 1)
	assert.InDelta(t, 1.5, got[0].Duration, 1e-9)
	assert.InDelta(t, 1.5, got[0].TotalDuration, 1e-9)
}

func TestSummarize_GroupsAndOrders(t *testing.T) {
	other := detail("Down", "2024-05-01 10:00:00", "", "", 0)
	other.Name = "#0"

	got := Summarize([]model.DetailRecord{
		detail("Down", "2024-05-02 06:00:00", "", "", 0),
		detail("Down", "2024-05-01 09:00:00", "", "", 0),
		other,
		detail("Down", "not a time", "", "", 0),
		detail("Down", "", "", "", 0),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "2024-05-01", got[0].Date)
	assert.Equal(t, "#0", got[0].Name)
	assert.Equal(t, "2024-05-01", got[1].Date)
	assert.Equal(t, "#1", got[1].Name)
	assert.Equal(t, "2024-05-02", got[2].Date)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
