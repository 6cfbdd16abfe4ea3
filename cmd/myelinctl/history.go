package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/nn"
)

var errEmptyHistory = errors.New("history has no habits")

// history is the on-disk input for every offline command.
type history struct {
	Habits     []model.Habit         `json:"habits"`
	Activities []model.DailyActivity `json:"activities"`
}

// modelFile is what train writes and predict reads.
type modelFile struct {
	State     nn.State  `json:"state"`
	Epochs    int       `json:"epochs"`
	Loss      float64   `json:"loss"`
	Examples  int       `json:"examples"`
	TrainedAt time.Time `json:"trained_at"`
}

func loadHistory(path string) (*history, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()
	return decodeHistory(f)
}

// decodeHistory rejects activities that point at unknown habits.
func decodeHistory(r io.Reader) (*history, error) {
	var h history
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if len(h.Habits) == 0 {
		return nil, errEmptyHistory
	}

	known := make(map[int]bool, len(h.Habits))
	for _, habit := range h.Habits {
		if known[habit.ID] {
			return nil, fmt.Errorf("duplicate habit id %d", habit.ID)
		}
		known[habit.ID] = true
	}
	for i, a := range h.Activities {
		if !known[a.HabitID] {
			return nil, fmt.Errorf("activity %d references unknown habit %d", i, a.HabitID)
		}
	}
	return &h, nil
}

func loadModel(path string) (*modelFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var m modelFile
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return &m, nil
}

func saveModel(path string, m *modelFile) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
