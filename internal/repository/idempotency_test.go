package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/repository"
	"github.com/bankmore/ledger/internal/testutil"
)

func TestIdempotencyRepository_Replay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	key := uuid.NewString()
	result := uuid.NewString()

	_, err := repo.Replay(ctx, key, "hash-a")
	require.ErrorIs(t, err, domain.ErrNotFound)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	created, err := repo.CreateIfAbsent(ctx, tx, &repository.IdempotencyRecord{
		Key:         key,
		RequestHash: "hash-a",
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, tx.Commit())

	got, err := repo.Replay(ctx, key, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, result, got)

	_, err = repo.Replay(ctx, key, "hash-b")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyReuse)
}

func TestIdempotencyRepository_ConcurrentCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	key := uuid.NewString()

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan string, workers)
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			defer tx.Rollback()

			result := uuid.NewString()
			created, err := repo.CreateIfAbsent(ctx, tx, &repository.IdempotencyRecord{
				Key:         key,
				RequestHash: "hash",
				Result:      result,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				errs <- err
				return
			}
			if !created {
				return
			}
			if err := tx.Commit(); err != nil {
				errs <- err
				return
			}
			wins <- result
		}()
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Exactly one goroutine may win the insert.
	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	got, err := repo.Replay(ctx, key, "hash")
	require.NoError(t, err)
	assert.Equal(t, winners[0], got)
}
