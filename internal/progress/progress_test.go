package progress

import (
	"testing"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 4, 10, 20, 0, 0, 0, time.UTC)

func day(offset int, completed bool, reps int) model.DailyActivity {
	ts := now.AddDate(0, 0, -offset)
	return model.DailyActivity{
		HabitID:   1,
		Date:      ts.Format(model.DayLayout),
		Completed: completed,
		Reps:      reps,
		Timestamp: ts,
	}
}

func TestCompute(t *testing.T) {
	habit := model.Habit{ID: 1, Goal: 10}
	acts := []model.DailyActivity{
		day(0, true, 1),
		day(1, true, 2),
		day(2, true, 1),
		day(4, true, 1),
		day(5, true, 1),
		day(6, true, 1),
		day(7, true, 1),
		day(8, false, 0),
		{HabitID: 2, Date: "2025-04-10", Completed: true, Reps: 50},
	}

	p := Compute(habit, acts, now)

	assert.Equal(t, 1, p.HabitID)
	assert.Equal(t, 8, p.TotalReps)
	assert.Equal(t, 3, p.CurrentStreak)
	assert.Equal(t, 4, p.LongestStreak)
	assert.InDelta(t, 80.0, p.CompletionRate, 1e-9)
	require.NotNil(t, p.LastRepDate)
	assert.Equal(t, "2025-04-10", p.LastRepDate.Format(model.DayLayout))
	assert.LessOrEqual(t, p.CurrentStreak, p.LongestStreak)
}

func TestCompute_StreakEndingYesterday(t *testing.T) {
	p := Compute(model.Habit{ID: 1, Goal: 5}, []model.DailyActivity{day(1, true, 1), day(2, true, 1)}, now)
	assert.Equal(t, 2, p.CurrentStreak)
}

func TestCompute_BrokenStreak(t *testing.T) {
	p := Compute(model.Habit{ID: 1, Goal: 5}, []model.DailyActivity{day(3, true, 1), day(4, true, 1)}, now)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)
}

func TestCompute_RateNotClamped(t *testing.T) {
	acts := []model.DailyActivity{day(0, true, 15)}
	p := Compute(model.Habit{ID: 1, Goal: 5}, acts, now)
	assert.InDelta(t, 300.0, p.CompletionRate, 1e-9)
}

func TestCompute_Empty(t *testing.T) {
	p := Compute(model.Habit{ID: 1, Goal: 0}, nil, now)
	assert.Equal(t, model.HabitProgress{HabitID: 1}, p)
}

func TestComputeAll(t *testing.T) {
	habits := []model.Habit{{ID: 1, Goal: 4}, {ID: 2, Goal: 4}}
	acts := []model.DailyActivity{day(0, true, 2), {HabitID: 2, Date: "2025-04-09", Completed: true, Reps: 1}}

	all := ComputeAll(habits, acts, now)

	require.Len(t, all, 2)
	assert.Equal(t, 2, all[1].TotalReps)
	assert.Equal(t, 1, all[2].TotalReps)
	assert.Equal(t, 1, all[2].CurrentStreak)
}
