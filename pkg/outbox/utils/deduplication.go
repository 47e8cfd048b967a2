package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	uniqueViolation = "23505"
	actionAttempts  = 3
	retryDelay      = 500 * time.Millisecond
)

// ProcessWithDeduplication runs action at most once per (consumer, eventID).
// The processed_events row and the action share a transaction: when the
// action keeps failing the row is rolled back and the event can be retried.
func ProcessWithDeduplication(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	consumer string,
	eventID int64,
	action func() error,
) error {
	span := trace.SpanFromContext(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dedup transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
	`

	if _, err := tx.Exec(ctx, query, consumer, eventID); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			mylogger.Info(
				ctx,
				logger,
				"Event already processed, skipping",
				zap.String("consumer", consumer),
				zap.Int64("event_id", eventID),
			)

			return nil
		}

		span.RecordError(err)
		return fmt.Errorf("failed to record processed event: %w", err)
	}

	if err := retry(ctx, action); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, logger, "Action failed after retries", zap.Int64("event_id", eventID), zap.Error(err))

		return fmt.Errorf("failed to process event %d: %w", eventID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to commit processed event: %w", err)
	}

	return nil
}

func retry(ctx context.Context, action func() error) error {
	var err error
	for i := 0; i < actionAttempts; i++ {
		if err = action(); err == nil {
			return nil
		}

		if i == actionAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return err
}
