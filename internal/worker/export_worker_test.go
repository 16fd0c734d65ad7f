package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	exportmem "tally/internal/export/memory"
	"tally/internal/storage"
)

func newTestWorker(t *testing.T) (*ExportWorker, *storage.SQLiteRepository, *exportmem.Writer) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"), "EUR")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	writer := exportmem.New()
	return NewExportWorker(repo, writer, 10), repo, writer
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository) string {
	t.Helper()
	tx := core.Transaction{
		OwnerID:     "u1",
		Category:    core.Expense,
		SubCategory: core.Bills,
		Amount:      core.Money{Cents: 1200},
		Beneficiary: "electric co",
		Timestamp:   time.Now(),
		PaidStatus:  core.Unpaid,
	}
	id, err := repo.CreateTransaction(context.Background(), tx, core.ComputeDelta(tx))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return id
}

func TestHandleCreatedEventExportsRow(t *testing.T) {
	w, repo, writer := newTestWorker(t)
	ctx := context.Background()
	id := seedTransaction(t, repo)

	msg := amqp.NewLedgerEventMessage("u1", id, amqp.EventCreated)
	if err := w.HandleLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("HandleLedgerEvent: %v", err)
	}

	rows := writer.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported %d rows, want 1", len(rows))
	}
	if rows[0].Transaction.ID != id || rows[0].Event != "created" {
		t.Errorf("row = %+v", rows[0])
	}

	pending, err := repo.ListExportPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListExportPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("row still pending after export")
	}
}

func TestHandleWipedEventIsNoop(t *testing.T) {
	w, _, writer := newTestWorker(t)

	msg := amqp.NewLedgerEventMessage("u1", "", amqp.EventWiped)
	if err := w.HandleLedgerEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerEvent: %v", err)
	}
	if len(writer.Rows()) != 0 {
		t.Error("wipe event exported rows")
	}
}

func TestProcessPendingExportsCatchesLostEvents(t *testing.T) {
	w, repo, writer := newTestWorker(t)
	ctx := context.Background()

	// Two rows land in the store but their events never reach the worker.
	seedTransaction(t, repo)
	seedTransaction(t, repo)

	if err := w.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if got := len(writer.Rows()); got != 2 {
		t.Errorf("exported %d rows, want 2", got)
	}

	// A second pass finds nothing left.
	if err := w.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if got := len(writer.Rows()); got != 2 {
		t.Errorf("second pass re-exported rows: %d", got)
	}
}
