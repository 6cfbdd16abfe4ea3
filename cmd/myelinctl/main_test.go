package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func writeHistory(t *testing.T) string {
	t.Helper()
	h := history{
		Habits: []model.Habit{
			{ID: 1, UserID: 7, Name: "read", Goal: 10, WrapSize: 3, CreatedAt: now.AddDate(0, 0, -20)},
			{ID: 2, UserID: 7, Name: "run", Goal: 25, WrapSize: 5, CreatedAt: now.AddDate(0, 0, -20)},
		},
	}
	for i := 0; i < 10; i++ {
		ts := now.AddDate(0, 0, -i).Add(-4 * time.Hour)
		h.Activities = append(h.Activities,
			model.DailyActivity{HabitID: 1, Date: ts.Format(model.DayLayout), Completed: true, Reps: 2, Timestamp: ts},
			model.DailyActivity{HabitID: 2, Date: ts.Format(model.DayLayout), Completed: i%2 == 0, Reps: 1, Timestamp: ts},
		)
	}

	raw, err := json.Marshal(h)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(func() time.Time { return now })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeHistory(t *testing.T) {
	_, err := decodeHistory(strings.NewReader(`{"habits":[],"activities":[]}`))
	assert.ErrorIs(t, err, errEmptyHistory)

	_, err = decodeHistory(strings.NewReader(`{"habits":[{"id":1}],"activities":[{"habit_id":2}]}`))
	assert.ErrorContains(t, err, "unknown habit 2")

	_, err = decodeHistory(strings.NewReader(`{"habits":[{"id":1},{"id":1}]}`))
	assert.ErrorContains(t, err, "duplicate habit id 1")

	_, err = decodeHistory(strings.NewReader(`{"habits":`))
	assert.Error(t, err)

	h, err := decodeHistory(strings.NewReader(`{"habits":[{"id":3,"goal":5}],"activities":[{"habit_id":3,"date":"2025-01-01","completed":true,"reps":1}]}`))
	require.NoError(t, err)
	assert.Len(t, h.Habits, 1)
	assert.Equal(t, "2025-01-01", h.Activities[0].Day())
}

func TestTrainThenPredict(t *testing.T) {
	data := writeHistory(t)
	modelPath := filepath.Join(t.TempDir(), "model.json")

	out, err := run(t, "train", "--data", data, "--out", modelPath, "--epochs", "5", "--seed", "3")
	require.NoError(t, err)

	var summary trainOutput
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Examples)
	assert.Equal(t, modelPath, summary.Model)
	assert.FileExists(t, modelPath)

	saved, err := loadModel(modelPath)
	require.NoError(t, err)
	assert.Equal(t, []int{15, 64, 32, 16, 5}, saved.State.LayerSizes)
	assert.Equal(t, now, saved.TrainedAt.UTC())

	out, err = run(t, "predict", "--data", data, "--model", modelPath)
	require.NoError(t, err)

	var preds predictOutput
	require.NoError(t, json.Unmarshal([]byte(out), &preds))
	assert.Equal(t, "network", preds.Source)
	require.Len(t, preds.Predictions, 2)
	for id, p := range preds.Predictions {
		assert.Equal(t, id, p.HabitID)
		assert.GreaterOrEqual(t, p.CompletionProbability, 0.0)
		assert.LessOrEqual(t, p.CompletionProbability, 100.0)
		assert.NotNil(t, p.SuggestedModifications)
	}
}

func TestPredict_HeuristicClamped(t *testing.T) {
	out, err := run(t, "predict", "--data", writeHistory(t))
	require.NoError(t, err)

	var preds predictOutput
	require.NoError(t, json.Unmarshal([]byte(out), &preds))
	assert.Equal(t, "heuristic", preds.Source)
	// Habit 1 has a 10 day streak at 200% of goal, well past 100 unclamped.
	assert.Equal(t, 100.0, preds.Predictions[1].CompletionProbability)
	assert.Equal(t, "08:00", preds.Predictions[1].OptimalTime)
}

func TestPredict_RejectsForeignModel(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"state":{"layer_sizes":[2,1],"weights":[[[0.1,0.2]]],"biases":[[0]]}}`), 0o644))

	_, err := run(t, "predict", "--data", writeHistory(t), "--model", bad)
	assert.Error(t, err)
}

func TestInsights(t *testing.T) {
	out, err := run(t, "insights", "--data", writeHistory(t))
	require.NoError(t, err)

	var got insightsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Progress, 2)
	assert.Equal(t, 10, got.Progress[1].CurrentStreak)
	assert.Equal(t, 20, got.Progress[1].TotalReps)
	assert.Equal(t, model.StageAutomatic, got.Insights[1].FormationStage)
	assert.Contains(t, got.Insights[2].Barriers, "complexity barrier")
}

func TestCorrelate(t *testing.T) {
	out, err := run(t, "correlate", "--data", writeHistory(t))
	require.NoError(t, err)

	var got []model.HabitCorrelation
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].HabitA)
	assert.Equal(t, 2, got[0].HabitB)
	assert.InDelta(t, 0.5, got[0].Strength, 1e-9)
	assert.Equal(t, model.RelationshipNeutral, got[0].RelationshipType)
}

func TestMissingHistory(t *testing.T) {
	_, err := run(t, "correlate", "--data", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "failed to open history")
}
