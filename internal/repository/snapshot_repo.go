package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/contracts/mq"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/outbox"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

var ErrSnapshotNotFound = errors.New("no insight snapshot for user")

const snapshotAggregate = "insight_snapshot"

type SnapshotRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewSnapshotRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

// Save stores report and queues a habit.insights.generated event in the same
// transaction. An empty report ID is assigned a new UUID.
func (r *SnapshotRepository) Save(ctx context.Context, report *model.InsightReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = otel.Query(ctx, "insert", "insight_snapshots", func(ctx context.Context) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO insight_snapshots (id, user_id, source, report, generated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, report.ID, report.UserID, report.Source, body, report.GeneratedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	payload := mq.InsightsGeneratedPayload{
		SnapshotID:  report.ID,
		UserID:      report.UserID,
		Source:      report.Source,
		HabitCount:  len(report.Predictions),
		GeneratedAt: report.GeneratedAt,
		TraceID:     trace.FromContext(ctx),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, snapshotAggregate, report.ID, mq.RoutingInsightsGenerated, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	r.logger.Info("Insight snapshot saved",
		zap.String("snapshot_id", report.ID),
		zap.Int("user_id", report.UserID),
		zap.String("source", report.Source),
	)
	return nil
}

// Latest returns the most recent snapshot for userID.
func (r *SnapshotRepository) Latest(ctx context.Context, userID int) (*model.InsightReport, error) {
	var body []byte
	err := otel.Query(ctx, "select", "insight_snapshots", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT report
			FROM insight_snapshots
			WHERE user_id = $1
			ORDER BY generated_at DESC
			LIMIT 1
		`, userID).Scan(&body)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for user %d: %w", userID, err)
	}

	var report model.InsightReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &report, nil
}
