package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/nn"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
)

var ErrModelNotFound = errors.New("no trained model for user")

// ModelRecord is a persisted network state plus the summary of the run that
// produced it.
type ModelRecord struct {
	UserID    int
	State     nn.State
	Epochs    int
	Loss      float64
	Examples  int
	TrainedAt time.Time
}

type ModelRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewModelRepository(db *pgxpool.Pool, logger *zap.Logger) *ModelRepository {
	return &ModelRepository{
		db:     db,
		logger: logger,
	}
}

// Save replaces the user's stored model.
func (r *ModelRepository) Save(ctx context.Context, rec ModelRecord) error {
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to encode network state: %w", err)
	}

	query := `
		INSERT INTO habit_models (user_id, state, epochs, loss, examples, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state,
		    epochs = EXCLUDED.epochs,
		    loss = EXCLUDED.loss,
		    examples = EXCLUDED.examples,
		    trained_at = EXCLUDED.trained_at
	`
	err = otel.Query(ctx, "upsert", "habit_models", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, rec.UserID, state, rec.Epochs, rec.Loss, rec.Examples, rec.TrainedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save model for user %d: %w", rec.UserID, err)
	}

	r.logger.Info("Model saved",
		zap.Int("user_id", rec.UserID),
		zap.Int("epochs", rec.Epochs),
		zap.Float64("loss", rec.Loss),
	)
	return nil
}

// Load returns ErrModelNotFound when the user has never been trained.
func (r *ModelRepository) Load(ctx context.Context, userID int) (*ModelRecord, error) {
	query := `
		SELECT user_id, state, epochs, loss, examples, trained_at
		FROM habit_models
		WHERE user_id = $1
	`
	var (
		rec   ModelRecord
		state []byte
	)
	err := otel.Query(ctx, "select", "habit_models", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, userID).Scan(
			&rec.UserID, &state, &rec.Epochs, &rec.Loss, &rec.Examples, &rec.TrainedAt,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model for user %d: %w", userID, err)
	}

	if err := json.Unmarshal(state, &rec.State); err != nil {
		return nil, fmt.Errorf("failed to decode network state for user %d: %w", userID, err)
	}
	return &rec, nil
}

// TrainedAt returns when the user's stored model was last trained, without
// loading its state. It returns ErrModelNotFound when there is none.
func (r *ModelRepository) TrainedAt(ctx context.Context, userID int) (time.Time, error) {
	var trainedAt time.Time
	err := otel.Query(ctx, "select", "habit_models", func(ctx context.Context) error {
		return r.db.QueryRow(ctx,
			`SELECT trained_at FROM habit_models WHERE user_id = $1`,
			userID,
		).Scan(&trainedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrModelNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read model version for user %d: %w", userID, err)
	}
	return trainedAt, nil
}
