// Package heuristic scores habits from aggregate statistics without any
// learned state. Every formula has a fallback for missing data.
package heuristic

import (
	"math"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/features"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

const (
	RiskLowCompletion  = "low completion rate"
	RiskBrokenStreak   = "broken streak pattern"
	RiskHighComplexity = "high target complexity"

	SuggestHalveTarget  = "Reduce the target by half to rebuild momentum"
	SuggestMicroHabits  = "Break the habit into smaller micro-habits"
	SuggestStacking     = "Stack this habit onto an existing daily routine"
	SuggestStrongerCue  = "Add a stronger environmental cue"
	SuggestStrongReward = "Pair completion with an immediate reward"

	BarrierComplexity = "complexity barrier"
	BarrierMotivation = "motivation barrier"

	defaultHour = 9
)

// Engine is stateless apart from its clock; one instance can serve every
// caller concurrently.
type Engine struct {
	now func() time.Time
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// CompletionProbability returns 50 + min(streak*2, 20) + rate*0.8. The
// result is not clamped and can exceed 100.
func (e *Engine) CompletionProbability(p model.HabitProgress) float64 {
	return 50 + math.Min(float64(p.CurrentStreak)*2, 20) + p.CompletionRate*0.8
}

// OptimalTime returns the most frequent hour across timed records as HH:00.
// Ties go to the hour seen first. Date-only records carry no hour.
func (e *Engine) OptimalTime(acts []model.DailyActivity) string {
	counts := make(map[int]int)
	var order []int
	for _, a := range acts {
		if !a.HasTime() {
			continue
		}
		h := a.Timestamp.Hour()
		if counts[h] == 0 {
			order = append(order, h)
		}
		counts[h]++
	}
	best, bestCount := defaultHour, 0
	for _, h := range order {
		if counts[h] > bestCount {
			best, bestCount = h, counts[h]
		}
	}
	return model.FormatHour(best)
}

func (e *Engine) RiskFactors(h model.Habit, p model.HabitProgress) []string {
	risks := []string{}
	if p.CompletionRate < 50 {
		risks = append(risks, RiskLowCompletion)
	}
	if p.CurrentStreak == 0 && p.TotalReps > 10 {
		risks = append(risks, RiskBrokenStreak)
	}
	if h.Goal > 20 {
		risks = append(risks, RiskHighComplexity)
	}
	return risks
}

func (e *Engine) SuggestedModifications(h model.Habit, p model.HabitProgress) []string {
	var mods []string
	if p.CompletionRate < 30 {
		mods = append(mods, SuggestHalveTarget, SuggestMicroHabits)
	}
	if h.Goal > 15 {
		mods = append(mods, SuggestStacking)
	}
	return append(mods, SuggestStrongerCue, SuggestStrongReward)
}

func (e *Engine) PredictedStreak(p model.HabitProgress) int {
	return int(math.Round(float64(p.CurrentStreak) + p.CompletionRate/10))
}

func (e *Engine) Confidence(acts []model.DailyActivity) float64 {
	return math.Min(100, float64(len(acts))*2)
}

func (e *Engine) TriggerEffectiveness(acts []model.DailyActivity) float64 {
	return math.Min(100, 50+float64(len(acts))/10)
}

func (e *Engine) RewardImpact(h model.Habit) float64 {
	return math.Min(100, 60+float64(h.WrapSize)*5)
}

// Automaticity is reps per active day as a percentage, capped at 100.
func (e *Engine) Automaticity(h model.Habit, p model.HabitProgress) float64 {
	days := model.DaysSince(h.CreatedAt, e.now())
	if days < 1 {
		days = 1
	}
	return math.Min(100, float64(p.TotalReps)/float64(days)*100)
}

func Stage(automaticity float64) model.FormationStage {
	switch {
	case automaticity < 25:
		return model.StageCue
	case automaticity < 50:
		return model.StageRoutine
	case automaticity < 75:
		return model.StageReward
	default:
		return model.StageAutomatic
	}
}

func (e *Engine) Barriers(h model.Habit, p model.HabitProgress) []string {
	barriers := []string{}
	if h.Goal > 20 {
		barriers = append(barriers, BarrierComplexity)
	}
	if p.CompletionRate < 40 {
		barriers = append(barriers, BarrierMotivation)
	}
	return barriers
}

// Predict builds the heuristic prediction for one habit. in.Activities should
// hold only that habit's records.
func (e *Engine) Predict(in features.Input) model.HabitPrediction {
	return model.HabitPrediction{
		HabitID:                in.Habit.ID,
		CompletionProbability:  e.CompletionProbability(in.Progress),
		OptimalTime:            e.OptimalTime(in.Activities),
		RiskFactors:            e.RiskFactors(in.Habit, in.Progress),
		SuggestedModifications: e.SuggestedModifications(in.Habit, in.Progress),
		PredictedStreak:        e.PredictedStreak(in.Progress),
		Confidence:             e.Confidence(in.Activities),
	}
}

func (e *Engine) Insight(in features.Input) model.BehavioralInsight {
	auto := e.Automaticity(in.Habit, in.Progress)
	return model.BehavioralInsight{
		HabitID:              in.Habit.ID,
		TriggerEffectiveness: e.TriggerEffectiveness(in.Activities),
		RewardImpact:         e.RewardImpact(in.Habit),
		AutomaticityScore:    auto,
		FormationStage:       Stage(auto),
		Barriers:             e.Barriers(in.Habit, in.Progress),
	}
}

// PredictAll scores every habit. Habits without a progress entry are scored
// from a zero snapshot.
func (e *Engine) PredictAll(
	habits []model.Habit,
	progress map[int]model.HabitProgress,
	activities []model.DailyActivity,
) map[int]model.HabitPrediction {
	out := make(map[int]model.HabitPrediction, len(habits))
	for _, in := range inputs(habits, progress, activities) {
		out[in.Habit.ID] = e.Predict(in)
	}
	return out
}

func (e *Engine) InsightsAll(
	habits []model.Habit,
	progress map[int]model.HabitProgress,
	activities []model.DailyActivity,
) map[int]model.BehavioralInsight {
	out := make(map[int]model.BehavioralInsight, len(habits))
	for _, in := range inputs(habits, progress, activities) {
		out[in.Habit.ID] = e.Insight(in)
	}
	return out
}

func inputs(habits []model.Habit, progress map[int]model.HabitProgress, activities []model.DailyActivity) []features.Input {
	byHabit := model.GroupByHabit(activities)
	out := make([]features.Input, 0, len(habits))
	for _, h := range habits {
		p, ok := progress[h.ID]
		if !ok {
			p = model.HabitProgress{HabitID: h.ID}
		}
		out = append(out, features.Input{Habit: h, Progress: p, Activities: byHabit[h.ID]})
	}
	return out
}
