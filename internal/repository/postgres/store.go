package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool       *pgxpool.Pool
	tx         pgx.Tx
	db         querier
	outboxRepo worker.OutboxRepository
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewStore(pool *pgxpool.Pool, outboxRepo worker.OutboxRepository, logger *zap.Logger) *Store {
	return &Store{
		pool:       pool,
		db:         pool,
		outboxRepo: outboxRepo,
		logger:     logger,
		tracer:     otel.Tracer("repository/postgres"),
	}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{db: s.db, logger: s.logger, tracer: s.tracer}
}

func (s *Store) Parcels() repository.ParcelRepository {
	return &parcelRepo{db: s.db, logger: s.logger, tracer: s.tracer}
}

func (s *Store) Payments() repository.PaymentRepository {
	return &paymentRepo{db: s.db, logger: s.logger, tracer: s.tracer}
}

func (s *Store) Riders() repository.RiderRepository {
	return &riderRepo{db: s.db, logger: s.logger, tracer: s.tracer}
}

func (s *Store) Outbox() repository.OutboxWriter {
	return &outboxWriter{tx: s.tx, repo: s.outboxRepo}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				cleanupCtx,
				s.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	txStore := &Store{
		pool:       s.pool,
		tx:         tx,
		db:         tx,
		outboxRepo: s.outboxRepo,
		logger:     s.logger,
		tracer:     s.tracer,
	}

	if err := fn(ctx, txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
