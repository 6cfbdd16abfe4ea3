// Package progress derives HabitProgress snapshots from the activity log.
package progress

import (
	"sort"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

// Compute rebuilds a habit's progress as of now from its activity records.
// Records for other habits are ignored.
func Compute(habit model.Habit, activities []model.DailyActivity, now time.Time) model.HabitProgress {
	p := model.HabitProgress{HabitID: habit.ID}

	completed := make(map[string]bool)
	var lastRep string
	for _, a := range activities {
		if a.HabitID != habit.ID {
			continue
		}
		p.TotalReps += a.Reps
		day := a.Day()
		if a.Completed {
			completed[day] = true
		}
		if a.Reps > 0 && day > lastRep {
			lastRep = day
		}
	}

	if habit.Goal > 0 {
		p.CompletionRate = float64(p.TotalReps) / float64(habit.Goal) * 100
	}
	if lastRep != "" {
		if t, err := time.ParseInLocation(model.DayLayout, lastRep, now.Location()); err == nil {
			p.LastRepDate = &t
		}
	}

	p.LongestStreak = longestRun(completed)
	p.CurrentStreak = currentRun(completed, now)
	return p
}

// ComputeAll returns progress for every habit keyed by id.
func ComputeAll(habits []model.Habit, activities []model.DailyActivity, now time.Time) map[int]model.HabitProgress {
	byHabit := model.GroupByHabit(activities)
	out := make(map[int]model.HabitProgress, len(habits))
	for _, h := range habits {
		out[h.ID] = Compute(h, byHabit[h.ID], now)
	}
	return out
}

// currentRun counts consecutive completed days ending today, or ending
// yesterday when today has nothing yet.
func currentRun(completed map[string]bool, now time.Time) int {
	day := dayStart(now)
	if !completed[day.Format(model.DayLayout)] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for completed[day.Format(model.DayLayout)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

func longestRun(completed map[string]bool) int {
	days := make([]time.Time, 0, len(completed))
	for d := range completed {
		t, err := time.Parse(model.DayLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	best, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Equal(days[i-1].AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
