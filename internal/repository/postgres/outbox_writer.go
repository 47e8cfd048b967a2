package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sakib404-hub/zap-shit-server/pkg/outbox/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/outbox/worker"
)

var errOutboxWithoutTx = errors.New("outbox events must be written inside a transaction")

type outboxWriter struct {
	tx   pgx.Tx
	repo worker.OutboxRepository
}

func (w *outboxWriter) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if w.tx == nil {
		return errOutboxWithoutTx
	}

	return w.repo.SaveOutboxEvent(ctx, w.tx, event)
}
