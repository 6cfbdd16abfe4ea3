package model

import (
	"fmt"
	"math"
	"time"
)

type FormationStage string

// Stage thresholds are applied to the automaticity score in this order.
const (
	StageCue       FormationStage = "cue"
	StageRoutine   FormationStage = "routine"
	StageReward    FormationStage = "reward"
	StageAutomatic FormationStage = "automatic"
)

type RelationshipType string

const (
	RelationshipPositive RelationshipType = "positive"
	RelationshipNegative RelationshipType = "negative"
	RelationshipNeutral  RelationshipType = "neutral"
)

type HabitPrediction struct {
	HabitID                int      `json:"habit_id"`
	CompletionProbability  float64  `json:"completion_probability"`
	OptimalTime            string   `json:"optimal_time"`
	RiskFactors            []string `json:"risk_factors"`
	SuggestedModifications []string `json:"suggested_modifications"`
	PredictedStreak        int      `json:"predicted_streak"`
	Confidence             float64  `json:"confidence"`
	RiskScore              float64  `json:"risk_score,omitempty"`
}

type BehavioralInsight struct {
	HabitID              int            `json:"habit_id"`
	TriggerEffectiveness float64        `json:"trigger_effectiveness"`
	RewardImpact         float64        `json:"reward_impact"`
	AutomaticityScore    float64        `json:"automaticity_score"`
	FormationStage       FormationStage `json:"formation_stage"`
	Barriers             []string       `json:"psychological_barriers"`
}

type HabitCorrelation struct {
	HabitA           int              `json:"habit_a"`
	HabitB           int              `json:"habit_b"`
	Strength         float64          `json:"correlation_strength"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Confidence       float64          `json:"confidence"`
}

// InsightReport bundles everything produced for one user in one run.
type InsightReport struct {
	ID           string                    `json:"id"`
	UserID       int                       `json:"user_id"`
	Source       string                    `json:"source"`
	GeneratedAt  time.Time                 `json:"generated_at"`
	Predictions  map[int]HabitPrediction   `json:"predictions"`
	Insights     map[int]BehavioralInsight `json:"insights"`
	Correlations []HabitCorrelation        `json:"correlations"`
}

// ClampPercent bounds a percentage to [0, 100]. Prediction producers return
// raw values; presentation code clamps.
func ClampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// FormatHour renders an hour of day as HH:00.
func FormatHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
