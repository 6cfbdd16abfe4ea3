// Package correlation measures how often pairs of habits agree day to day.
package correlation

import (
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

const (
	// Confidence attached to every pair; the agreement ratio carries no
	// sample-size signal of its own.
	DefaultConfidence = 0.7

	// Classification band around zero on the signed agreement scale.
	NeutralBand = 0.1
)

// Pair compares two habits over the calendar days both have a record for.
// A day matches when both were completed or both were not. Strength is
// matches divided by shared days, 0 when there are none.
func Pair(a, b []model.DailyActivity) (strength float64, shared int) {
	da := completionByDay(a)
	db := completionByDay(b)

	matches := 0
	for day, doneA := range da {
		doneB, ok := db[day]
		if !ok {
			continue
		}
		shared++
		if doneA == doneB {
			matches++
		}
	}
	if shared == 0 {
		return 0, 0
	}
	return float64(matches) / float64(shared), shared
}

// Classify maps an agreement ratio onto a relationship. The ratio is
// rescaled to [-1, 1] so that always-disagreeing habits read as negative.
// Pairs without shared days are neutral.
func Classify(strength float64, shared int) model.RelationshipType {
	if shared == 0 {
		return model.RelationshipNeutral
	}
	signed := 2*strength - 1
	switch {
	case signed > NeutralBand:
		return model.RelationshipPositive
	case signed < -NeutralBand:
		return model.RelationshipNegative
	default:
		return model.RelationshipNeutral
	}
}

// Compute returns one correlation per unordered habit pair, in habit order.
func Compute(habits []model.Habit, activities []model.DailyActivity) []model.HabitCorrelation {
	byHabit := model.GroupByHabit(activities)
	out := []model.HabitCorrelation{}
	for i := 0; i < len(habits); i++ {
		for j := i + 1; j < len(habits); j++ {
			a, b := habits[i].ID, habits[j].ID
			strength, shared := Pair(byHabit[a], byHabit[b])
			out = append(out, model.HabitCorrelation{
				HabitA:           a,
				HabitB:           b,
				Strength:         strength,
				RelationshipType: Classify(strength, shared),
				Confidence:       DefaultConfidence,
			})
		}
	}
	return out
}

// completionByDay collapses records to one flag per day; any completed
// record marks the day completed.
func completionByDay(acts []model.DailyActivity) map[string]bool {
	out := make(map[string]bool, len(acts))
	for _, a := range acts {
		day := a.Day()
		out[day] = out[day] || a.Completed
	}
	return out
}
