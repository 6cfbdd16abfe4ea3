package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
)

type HabitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

func (r *HabitRepository) ListByUser(ctx context.Context, userID int) ([]model.Habit, error) {
	query := `
		SELECT id, user_id, name, goal, wrap_size, created_at
		FROM habits
		WHERE user_id = $1
		ORDER BY id
	`
	var habits []model.Habit
	err := otel.Query(ctx, "select", "habits", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var h model.Habit
			if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Goal, &h.WrapSize, &h.CreatedAt); err != nil {
				return err
			}
			habits = append(habits, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list habits for user %d: %w", userID, err)
	}
	return habits, nil
}

// ActivitiesByUser returns the user's activity records on or after since,
// oldest first. A zero since returns the full history.
func (r *HabitRepository) ActivitiesByUser(ctx context.Context, userID int, since time.Time) ([]model.DailyActivity, error) {
	query := `
		SELECT a.habit_id, a.activity_date, a.completed, a.reps, a.logged_at
		FROM habit_activities a
		JOIN habits h ON h.id = a.habit_id
		WHERE h.user_id = $1 AND a.activity_date >= $2
		ORDER BY a.activity_date, a.logged_at
	`
	var acts []model.DailyActivity
	err := otel.Query(ctx, "select", "habit_activities", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, userID, since)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				a   model.DailyActivity
				day time.Time
			)
			if err := rows.Scan(&a.HabitID, &day, &a.Completed, &a.Reps, &a.Timestamp); err != nil {
				return err
			}
			a.Date = day.Format(model.DayLayout)
			acts = append(acts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load activities for user %d: %w", userID, err)
	}
	return acts, nil
}

// UsersWithActivitySince lists users who logged anything after since.
func (r *HabitRepository) UsersWithActivitySince(ctx context.Context, since time.Time) ([]int, error) {
	query := `
		SELECT DISTINCT h.user_id
		FROM habit_activities a
		JOIN habits h ON h.id = a.habit_id
		WHERE a.logged_at > $1
		ORDER BY h.user_id
	`
	var users []int
	err := otel.Query(ctx, "select", "habit_activities", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, since)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return err
			}
			users = append(users, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	r.logger.Debug("Active users loaded",
		zap.Time("since", since),
		zap.Int("count", len(users)),
	)
	return users, nil
}
