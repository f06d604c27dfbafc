package idempotency

import (
	"context"
	"fmt"
	"log/slog"
)

// InitializeIndexes prepares the key repository storage. Call once at startup.
func InitializeIndexes(ctx context.Context, repo KeyRepository) error {
	if err := repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create idempotency indexes: %w", err)
	}
	slog.Info("Idempotency storage initialized")
	return nil
}
