package backend

import (
	"fmt"
	"log/slog"

	"tally/internal/config"
	"tally/internal/ledger/memory"
	"tally/internal/storage"
)

// Open creates the backend named by the config. The memory backend needs no
// cleanup; the sqlite backend's cleanup closes the database.
func Open(cfg *config.Config) (*Result, error) {
	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch t {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.DefaultCurrency)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		slog.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{
			Store:   repo,
			Users:   repo,
			Cleanup: repo.Close,
		}, nil

	case MemoryBackend:
		slog.Info("Initialized memory backend")
		return &Result{
			Store: memory.New(cfg.DefaultCurrency),
			Users: memory.NewUserStore(),
		}, nil
	}

	return nil, fmt.Errorf("unsupported backend type: %s", t)
}
