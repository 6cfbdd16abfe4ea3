package mq

import "time"

const (
	RoutingActivityLogged    = "habit.activity.logged"
	RoutingInsightsRequested = "habit.insights.requested"
	RoutingInsightsGenerated = "habit.insights.generated"
)

// ActivityLoggedPayload is published by the tracker whenever a rep is
// recorded.
type ActivityLoggedPayload struct {
	UserID    int       `json:"user_id"`
	HabitID   int       `json:"habit_id"`
	Date      string    `json:"date"`
	Reps      int       `json:"reps"`
	Completed bool      `json:"completed"`
	LoggedAt  time.Time `json:"logged_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

type InsightsRequestedPayload struct {
	RequestID   string    `json:"request_id"`
	UserID      int       `json:"user_id"`
	Retrain     bool      `json:"retrain"`
	RequestedAt time.Time `json:"requested_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

type InsightsGeneratedPayload struct {
	SnapshotID  string    `json:"snapshot_id"`
	UserID      int       `json:"user_id"`
	Source      string    `json:"source"`
	HabitCount  int       `json:"habit_count"`
	GeneratedAt time.Time `json:"generated_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}
