package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/core"
)

// issueNumber draws one number in its own transaction and commits it.
func issueNumber(ctx context.Context, pool *pgxpool.Pool, docs core.DocumentService, tenant int, prefix string, year int) (string, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	num, err := docs.NextNumberTx(ctx, tx, tenant, prefix, year)
	if err != nil {
		return "", err
	}
	return num, tx.Commit(ctx)
}

func TestDocumentService_SequencesAreIndependent(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	first, err := issueNumber(ctx, pool, s.docs, tenantID, "VTA", 2026)
	require.NoError(t, err)
	assert.Equal(t, "VTA-2026-00000001", first)

	second, err := issueNumber(ctx, pool, s.docs, tenantID, "VTA", 2026)
	require.NoError(t, err)
	assert.Equal(t, "VTA-2026-00000002", second)

	// New year, new prefix and another tenant each start at 1.
	for _, tc := range []struct {
		tenant int
		prefix string
		year   int
	}{
		{tenantID, "VTA", 2027},
		{tenantID, "CMP", 2026},
		{otherTenantID, "VTA", 2026},
	} {
		got, err := issueNumber(ctx, pool, s.docs, tc.tenant, tc.prefix, tc.year)
		require.NoError(t, err)
		assert.Contains(t, got, "-00000001")
	}

	_, err = issueNumber(ctx, pool, s.docs, tenantID, "", 2026)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDocumentService_RollbackLeavesNoGap(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	num, err := s.docs.NextNumberTx(ctx, tx, tenantID, "CMP", 2026)
	require.NoError(t, err)
	assert.Equal(t, "CMP-2026-00000001", num)
	require.NoError(t, tx.Rollback(ctx))

	num, err = issueNumber(ctx, pool, s.docs, tenantID, "CMP", 2026)
	require.NoError(t, err)
	assert.Equal(t, "CMP-2026-00000001", num)
}

func TestDocumentService_ConcurrentNumbering(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := issueNumber(ctx, pool, s.docs, tenantID, "REM", 2026)
			if err != nil {
				t.Errorf("concurrent numbering error: %v", err)
				return
			}
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "every number is unique")
	assert.True(t, seen["REM-2026-00000020"])
}
