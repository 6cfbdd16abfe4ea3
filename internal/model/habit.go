package model

import "time"

const DayLayout = "2006-01-02"

type Habit struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Goal      int       `json:"goal"`
	WrapSize  int       `json:"wrap_size"`
	CreatedAt time.Time `json:"created_at"`
}

// HabitProgress is derived from the activity log. CompletionRate is the raw
// percentage of goal reached and may exceed 100.
type HabitProgress struct {
	HabitID        int        `json:"habit_id"`
	TotalReps      int        `json:"total_reps"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	CompletionRate float64    `json:"completion_rate"`
	LastRepDate    *time.Time `json:"last_rep_date,omitempty"`
}

type DailyActivity struct {
	HabitID   int       `json:"habit_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Completed bool      `json:"completed"`
	Reps      int       `json:"reps"`
	Timestamp time.Time `json:"timestamp"`
}

// Day returns the calendar day of the record, falling back to the timestamp
// when Date was not supplied.
func (a DailyActivity) Day() string {
	if a.Date != "" {
		return a.Date
	}
	return a.Timestamp.Format(DayLayout)
}

// HasTime reports whether the record carries a time of day. Records imported
// with only a Date do not.
func (a DailyActivity) HasTime() bool {
	return !a.Timestamp.IsZero()
}

// At returns the record's timestamp, or midnight of Date in loc when only the
// date is known. It returns the zero time when neither is usable.
func (a DailyActivity) At(loc *time.Location) time.Time {
	if a.HasTime() {
		return a.Timestamp
	}
	t, err := time.ParseInLocation(DayLayout, a.Date, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GroupByHabit buckets activities by habit id, preserving input order.
func GroupByHabit(activities []DailyActivity) map[int][]DailyActivity {
	out := make(map[int][]DailyActivity)
	for _, a := range activities {
		out[a.HabitID] = append(out[a.HabitID], a)
	}
	return out
}

// FilterByHabit returns the records that belong to habitID.
func FilterByHabit(activities []DailyActivity, habitID int) []DailyActivity {
	var out []DailyActivity
	for _, a := range activities {
		if a.HabitID == habitID {
			out = append(out, a)
		}
	}
	return out
}

// DaysSince returns whole days elapsed between created and now.
func DaysSince(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}
