package db

import (
	"context"
	"fmt"
)

// AcquireTicketLock takes a transaction-scoped advisory lock keyed by the
// ticket id. Draft creation for one ticket is serialized on this lock so
// two concurrent generations cannot both believe they are the sole active
// draft. Released automatically at commit or rollback.
func AcquireTicketLock(ctx context.Context, q DBTX, ticketID string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return fmt.Errorf("failed to acquire ticket lock for %s: %w", ticketID, err)
	}
	return nil
}
