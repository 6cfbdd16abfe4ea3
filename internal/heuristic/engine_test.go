package heuristic

import (
	"testing"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/features"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(func() time.Time { return now })
}

func at(hour int) model.DailyActivity {
	return model.DailyActivity{HabitID: 1, Reps: 1, Completed: true, Timestamp: time.Date(2025, 5, 1, hour, 15, 0, 0, time.UTC)}
}

func TestFreshComplexHabit(t *testing.T) {
	e := setupEngine(t)
	in := features.Input{
		Habit:    model.Habit{ID: 1, Goal: 21, WrapSize: 7, CreatedAt: now.AddDate(0, 0, -3)},
		Progress: model.HabitProgress{HabitID: 1},
	}

	pred := e.Predict(in)
	insight := e.Insight(in)

	assert.Equal(t, 50.0, pred.CompletionProbability)
	assert.Contains(t, pred.RiskFactors, RiskLowCompletion)
	assert.Contains(t, pred.RiskFactors, RiskHighComplexity)
	assert.NotContains(t, pred.RiskFactors, RiskBrokenStreak)
	assert.Equal(t, "09:00", pred.OptimalTime)
	assert.Equal(t, 0, pred.PredictedStreak)
	assert.Equal(t, 0.0, pred.Confidence)

	assert.Equal(t, 0.0, insight.AutomaticityScore)
	assert.Equal(t, model.StageCue, insight.FormationStage)
	assert.Equal(t, 50.0, insight.TriggerEffectiveness)
	assert.Equal(t, 95.0, insight.RewardImpact)
	assert.Equal(t, []string{BarrierComplexity, BarrierMotivation}, insight.Barriers)
}

func TestCompletionProbability_NotClamped(t *testing.T) {
	e := setupEngine(t)

	got := e.CompletionProbability(model.HabitProgress{CurrentStreak: 30, CompletionRate: 90})

	assert.InDelta(t, 142.0, got, 1e-9)
	assert.Equal(t, 100.0, model.ClampPercent(got))
}

func TestCompletionProbability_StreakBonusCapped(t *testing.T) {
	e := setupEngine(t)
	assert.Equal(t, 56.0, e.CompletionProbability(model.HabitProgress{CurrentStreak: 3}))
	assert.Equal(t, 70.0, e.CompletionProbability(model.HabitProgress{CurrentStreak: 10}))
	assert.Equal(t, 70.0, e.CompletionProbability(model.HabitProgress{CurrentStreak: 11}))
}

func TestOptimalTime(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, "09:00", e.OptimalTime(nil))
	assert.Equal(t, "07:00", e.OptimalTime([]model.DailyActivity{at(7), at(18), at(7)}))
	assert.Equal(t, "18:00", e.OptimalTime([]model.DailyActivity{at(18), at(7)}), "ties go to the first hour seen")
	assert.Equal(t, "07:00", e.OptimalTime([]model.DailyActivity{at(7), at(18), at(18), at(7)}))
}

func TestRiskFactors(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, []string{RiskLowCompletion, RiskBrokenStreak},
		e.RiskFactors(model.Habit{Goal: 5}, model.HabitProgress{TotalReps: 11, CompletionRate: 20}))
	assert.Empty(t, e.RiskFactors(model.Habit{Goal: 20}, model.HabitProgress{TotalReps: 11, CurrentStreak: 1, CompletionRate: 50}))
	assert.NotNil(t, e.RiskFactors(model.Habit{}, model.HabitProgress{CompletionRate: 80}))
}

func TestSuggestedModifications(t *testing.T) {
	e := setupEngine(t)

	low := e.SuggestedModifications(model.Habit{Goal: 16}, model.HabitProgress{CompletionRate: 10})
	assert.Equal(t, []string{SuggestHalveTarget, SuggestMicroHabits, SuggestStacking, SuggestStrongerCue, SuggestStrongReward}, low)

	ok := e.SuggestedModifications(model.Habit{Goal: 15}, model.HabitProgress{CompletionRate: 30})
	assert.Equal(t, []string{SuggestStrongerCue, SuggestStrongReward}, ok)
}

func TestPredictedStreakAndConfidence(t *testing.T) {
	e := setupEngine(t)

	assert.Equal(t, 9, e.PredictedStreak(model.HabitProgress{CurrentStreak: 4, CompletionRate: 45}))
	assert.Equal(t, 6, e.PredictedStreak(model.HabitProgress{CurrentStreak: 4, CompletionRate: 24}))

	acts := make([]model.DailyActivity, 30)
	assert.Equal(t, 60.0, e.Confidence(acts))
	assert.Equal(t, 53.0, e.TriggerEffectiveness(acts))
	acts = make([]model.DailyActivity, 600)
	assert.Equal(t, 100.0, e.Confidence(acts))
	assert.Equal(t, 100.0, e.TriggerEffectiveness(acts))
}

func TestAutomaticityAndStage(t *testing.T) {
	e := setupEngine(t)
	h := model.Habit{CreatedAt: now.AddDate(0, 0, -10)}

	assert.InDelta(t, 30.0, e.Automaticity(h, model.HabitProgress{TotalReps: 3}), 1e-9)
	assert.Equal(t, 100.0, e.Automaticity(h, model.HabitProgress{TotalReps: 50}))
	assert.Equal(t, 100.0, e.Automaticity(model.Habit{CreatedAt: now}, model.HabitProgress{TotalReps: 1}), "creation today counts as one day")
	assert.Equal(t, 0.0, e.Automaticity(model.Habit{}, model.HabitProgress{}))

	assert.Equal(t, model.StageCue, Stage(24.9))
	assert.Equal(t, model.StageRoutine, Stage(25))
	assert.Equal(t, model.StageRoutine, Stage(49.9))
	assert.Equal(t, model.StageReward, Stage(50))
	assert.Equal(t, model.StageReward, Stage(74.9))
	assert.Equal(t, model.StageAutomatic, Stage(75))
}

func TestRewardImpactCapped(t *testing.T) {
	e := setupEngine(t)
	assert.Equal(t, 65.0, e.RewardImpact(model.Habit{WrapSize: 1}))
	assert.Equal(t, 100.0, e.RewardImpact(model.Habit{WrapSize: 12}))
}

func TestPredictAll(t *testing.T) {
	e := setupEngine(t)
	habits := []model.Habit{{ID: 1, Goal: 10}, {ID: 2, Goal: 30}}
	progress := map[int]model.HabitProgress{1: {HabitID: 1, CurrentStreak: 2, CompletionRate: 60}}
	acts := []model.DailyActivity{at(6), at(6), {HabitID: 2, Timestamp: time.Date(2025, 5, 1, 21, 0, 0, 0, time.UTC)}}

	preds := e.PredictAll(habits, progress, acts)
	insights := e.InsightsAll(habits, progress, acts)

	assert.Len(t, preds, 2)
	assert.Equal(t, "06:00", preds[1].OptimalTime)
	assert.Equal(t, 4.0, preds[1].Confidence)
	assert.InDelta(t, 102.0, preds[1].CompletionProbability, 1e-9)
	assert.Equal(t, "21:00", preds[2].OptimalTime)
	assert.Equal(t, 50.0, preds[2].CompletionProbability, "missing progress falls back to zeros")
	assert.Len(t, insights, 2)
	assert.Equal(t, 2, insights[2].HabitID)
}

func TestOptimalTime_IgnoresDateOnlyRecords(t *testing.T) {
	e := setupEngine(t)
	dated := model.DailyActivity{HabitID: 1, Date: "2025-05-01", Completed: true, Reps: 1}

	assert.Equal(t, "09:00", e.OptimalTime([]model.DailyActivity{dated, dated}))
	assert.Equal(t, "18:00", e.OptimalTime([]model.DailyActivity{dated, dated, at(18)}))
}
