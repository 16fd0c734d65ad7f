// Package worker mirrors committed ledger rows to the export target. Events
// arrive over AMQP; a periodic scan of the export queue catches rows whose
// events were lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/export"
	"tally/internal/storage"
)

type ExportWorker struct {
	storage   *storage.SQLiteRepository
	writer    export.LedgerWriter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, writer export.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleLedgerEvent processes one event from the queue. Settled rows are
// appended as their own lines; the export status on the transaction tracks
// the created row only, so the pending scan never replays settlements.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch msg.Kind {
	case amqp.EventCreated:
		return w.exportCreated(ctx, msg.UserID, msg.TransactionID)
	case amqp.EventSettled:
		return w.exportSettled(ctx, msg.UserID, msg.TransactionID)
	case amqp.EventWiped:
		// Exported history stays in the sheet as an audit trail.
		slog.InfoContext(ctx, "User data wiped, keeping exported rows", "user_id", msg.UserID)
		return nil
	default:
		return fmt.Errorf("unknown event kind %q", msg.Kind)
	}
}

func (w *ExportWorker) exportCreated(ctx context.Context, userID, txID string) error {
	t, err := w.storage.GetTransaction(ctx, userID, txID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.writer.Append(ctx, export.Row{Transaction: t, Event: "created"})
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, txID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", txID, "error", markErr)
		}
		return fmt.Errorf("append to export target: %w", err)
	}

	if err := w.storage.MarkExported(ctx, txID); err != nil {
		// The append succeeded; the pending scan may duplicate this row
		// but the request must not fail.
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", txID, "error", err)
	}

	slog.InfoContext(ctx, "Exported ledger row",
		"id", txID,
		"export_ref", ref,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (w *ExportWorker) exportSettled(ctx context.Context, userID, txID string) error {
	t, err := w.storage.GetTransaction(ctx, userID, txID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.writer.Append(ctx, export.Row{Transaction: t, Event: "settled"})
	if err != nil {
		return fmt.Errorf("append settlement to export target: %w", err)
	}

	slog.InfoContext(ctx, "Exported settlement row", "id", txID, "export_ref", ref)
	return nil
}

// ProcessPendingExports drains the export queue. Backup path for rows whose
// created events never arrived.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	return w.drainPending(ctx, w.batchSize)
}

// StartupExportCheck runs a larger drain once at worker startup to recover
// from downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	return w.drainPending(ctx, w.batchSize*5)
}

func (w *ExportWorker) drainPending(ctx context.Context, limit int) error {
	pending, err := w.storage.ListExportPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("list export pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	failed := 0
	for _, t := range pending {
		ref, err := w.writer.Append(ctx, export.Row{Transaction: t, Event: "created"})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export pending row", "id", t.ID, "error", err)
			if markErr := w.storage.MarkExportError(ctx, t.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error", "id", t.ID, "error", markErr)
			}
			failed++
			continue
		}
		if err := w.storage.MarkExported(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark as exported", "id", t.ID, "error", err)
		}
		slog.DebugContext(ctx, "Exported pending row", "id", t.ID, "export_ref", ref)
		exported++
	}

	slog.InfoContext(ctx, "Pending export pass completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

// RunPendingScan ticks the pending drain until ctx is done.
func (w *ExportWorker) RunPendingScan(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingExports(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending export pass failed", "error", err)
			}
		}
	}
}
