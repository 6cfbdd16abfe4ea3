// Package features turns a habit's history into the fixed-width numeric
// vectors consumed by the prediction network.
package features

import (
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

const (
	FeatureLen = 15
	TargetLen  = 5
)

// FeatureVector layout:
//
//	0  completion rate / 100
//	1  current streak / 30
//	2  total reps / 100
//	3  goal / 50
//	4  wrap size / 10
//	5  days since creation / 365
//	6  activity records per day since creation
//	7  mean hour of timed records with reps / 24 (hour 12 when none)
//	8  share of days since creation with at least one record
//	9  goal > 20
//	10 wrap size > 5
//	11 completed share of the last 7 days' records
//	12-14 reserved, zero
type FeatureVector [FeatureLen]float64

// TargetVector layout:
//
//	0 completion rate / 100
//	1 min(current streak + 7, 30) / 30
//	2 (100 - completion rate) / 100
//	3 mean hour of timed completed records / 24 (hour 9 when none)
//	4 min(record count / 50, 1)
type TargetVector [TargetLen]float64

type Input struct {
	Habit      model.Habit
	Progress   model.HabitProgress
	Activities []model.DailyActivity
}

// FitFeatures copies values into a FeatureVector, zero padding short input
// and dropping anything past FeatureLen.
func FitFeatures(values []float64) FeatureVector {
	var v FeatureVector
	copy(v[:], values)
	return v
}

// FitTargets is FitFeatures for TargetVector.
func FitTargets(values []float64) TargetVector {
	var v TargetVector
	copy(v[:], values)
	return v
}

func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureLen)
	copy(out, v[:])
	return out
}

func (v TargetVector) Slice() []float64 {
	out := make([]float64, TargetLen)
	copy(out, v[:])
	return out
}

// Extract builds the feature vector for one habit as of now. It never fails;
// every feature has a fallback for missing data.
func Extract(in Input, now time.Time) FeatureVector {
	days := float64(activeDays(in.Habit.CreatedAt, now))
	acts := in.Activities

	values := []float64{
		in.Progress.CompletionRate / 100,
		float64(in.Progress.CurrentStreak) / 30,
		float64(in.Progress.TotalReps) / 100,
		float64(in.Habit.Goal) / 50,
		float64(in.Habit.WrapSize) / 10,
		days / 365,
		float64(len(acts)) / days,
		meanHour(acts, func(a model.DailyActivity) bool { return a.Reps > 0 }, 12) / 24,
		float64(distinctDays(acts)) / days,
		flag(in.Habit.Goal > 20),
		flag(in.Habit.WrapSize > 5),
		recentCompletion(acts, now),
	}
	return FitFeatures(values)
}

// BuildTarget builds the ground-truth vector used for training.
func BuildTarget(in Input) TargetVector {
	rate := in.Progress.CompletionRate
	streak := float64(in.Progress.CurrentStreak) + 7
	if streak > 30 {
		streak = 30
	}
	confidence := float64(len(in.Activities)) / 50
	if confidence > 1 {
		confidence = 1
	}

	return FitTargets([]float64{
		rate / 100,
		streak / 30,
		(100 - rate) / 100,
		meanHour(in.Activities, func(a model.DailyActivity) bool { return a.Completed }, 9) / 24,
		confidence,
	})
}

func activeDays(created, now time.Time) int {
	d := model.DaysSince(created, now)
	if d < 1 {
		return 1
	}
	return d
}

func meanHour(acts []model.DailyActivity, keep func(model.DailyActivity) bool, fallback float64) float64 {
	sum, n := 0, 0
	for _, a := range acts {
		if !keep(a) || !a.HasTime() {
			continue
		}
		sum += a.Timestamp.Hour()
		n++
	}
	if n == 0 {
		return fallback
	}
	return float64(sum) / float64(n)
}

func distinctDays(acts []model.DailyActivity) int {
	seen := make(map[string]struct{}, len(acts))
	for _, a := range acts {
		seen[a.Day()] = struct{}{}
	}
	return len(seen)
}

func recentCompletion(acts []model.DailyActivity, now time.Time) float64 {
	cutoff := now.Add(-7 * 24 * time.Hour)
	total, done := 0, 0
	for _, a := range acts {
		at := a.At(now.Location())
		if at.IsZero() || at.Before(cutoff) {
			continue
		}
		total++
		if a.Completed {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
