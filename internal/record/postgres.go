// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package record

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PostgresStore implements Store using PostgreSQL. Each logical store
// (accounts, blacklist, permissions) is a bucket within one shared table;
// Update serializes writers per bucket with a transaction-scoped advisory
// lock.
type PostgresStore struct {
	pool   Pool
	bucket string
}

// querier is the subset of pgxpool.Pool and pgx.Tx the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the connection pool behavior the store depends on. Satisfied by
// *pgxpool.Pool.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OpenPool connects to PostgreSQL and verifies the connection, retrying the
// ping with exponential backoff so the host survives a database that is
// still starting up.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("RECORD_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxDuration(10*time.Second, retry.NewExponential(250*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("RECORD_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	return pool, nil
}

// NewPostgresStore creates a bucket-scoped store over an existing pool.
func NewPostgresStore(pool Pool, bucket string) (*PostgresStore, error) {
	if pool == nil {
		return nil, oops.Code("RECORD_NIL_POOL").New("pool is required")
	}
	if bucket == "" {
		return nil, oops.Code("RECORD_EMPTY_BUCKET").New("bucket is required")
	}
	return &PostgresStore{pool: pool, bucket: bucket}, nil
}

// Has implements Tx.
func (s *PostgresStore) Has(ctx context.Context, key string) (bool, error) {
	return pgHas(ctx, s.pool, s.bucket, key)
}

// Get implements Tx.
func (s *PostgresStore) Get(ctx context.Context, key string) (Record, error) {
	return pgGet(ctx, s.pool, s.bucket, key)
}

// Set implements Tx.
func (s *PostgresStore) Set(ctx context.Context, key string, rec Record) error {
	return pgSet(ctx, s.pool, s.bucket, key, rec)
}

// Delete implements Tx.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return pgDelete(ctx, s.pool, s.bucket, key)
}

// Len implements Tx.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	return pgLen(ctx, s.pool, s.bucket)
}

// Update implements Store. Serialization failures and deadlocks are retried
// a bounded number of times; errors returned by fn are never retried.
func (s *PostgresStore) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.updateOnce(ctx, fn)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *PostgresStore) updateOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("RECORD_TX_BEGIN_FAILED").With("bucket", s.bucket).Wrap(err)
	}
	// Released on commit and on every failure path.
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// One writer per bucket for the duration of the transaction.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, s.bucket); err != nil {
		return oops.Code("RECORD_TX_LOCK_FAILED").With("bucket", s.bucket).Wrap(err)
	}

	if err := fn(ctx, &pgTx{q: tx, bucket: s.bucket}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RECORD_TX_COMMIT_FAILED").With("bucket", s.bucket).Wrap(err)
	}
	return nil
}

// pgTx runs Tx operations against an open pgx transaction.
type pgTx struct {
	q      querier
	bucket string
}

func (t *pgTx) Has(ctx context.Context, key string) (bool, error) {
	return pgHas(ctx, t.q, t.bucket, key)
}

func (t *pgTx) Get(ctx context.Context, key string) (Record, error) {
	return pgGet(ctx, t.q, t.bucket, key)
}

func (t *pgTx) Set(ctx context.Context, key string, rec Record) error {
	return pgSet(ctx, t.q, t.bucket, key, rec)
}

func (t *pgTx) Delete(ctx context.Context, key string) error {
	return pgDelete(ctx, t.q, t.bucket, key)
}

func (t *pgTx) Len(ctx context.Context) (int, error) {
	return pgLen(ctx, t.q, t.bucket)
}

func pgHas(ctx context.Context, q querier, bucket, key string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM records WHERE bucket = $1 AND key = $2)`,
		bucket, key).Scan(&exists)
	if err != nil {
		return false, oops.Code("RECORD_HAS_FAILED").With("bucket", bucket).With("key", key).Wrap(err)
	}
	return exists, nil
}

func pgGet(ctx context.Context, q querier, bucket, key string) (Record, error) {
	var raw []byte
	err := q.QueryRow(ctx,
		`SELECT record FROM records WHERE bucket = $1 AND key = $2`,
		bucket, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("RECORD_GET_FAILED").With("bucket", bucket).With("key", key).Wrap(err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("RECORD_CORRUPT").With("bucket", bucket).With("key", key).Wrap(err)
	}
	return rec, nil
}

func pgSet(ctx context.Context, q querier, bucket, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("RECORD_SET_FAILED").With("bucket", bucket).With("key", key).Wrap(err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO records (bucket, key, record) VALUES ($1, $2, $3)
		ON CONFLICT (bucket, key) DO UPDATE SET record = EXCLUDED.record
	`, bucket, key, raw)
	if err != nil {
		return oops.Code("RECORD_SET_FAILED").With("bucket", bucket).With("key", key).Wrap(err)
	}
	return nil
}

func pgDelete(ctx context.Context, q querier, bucket, key string) error {
	tag, err := q.Exec(ctx, `DELETE FROM records WHERE bucket = $1 AND key = $2`, bucket, key)
	if err != nil {
		return oops.Code("RECORD_DELETE_FAILED").With("bucket", bucket).With("key", key).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgLen(ctx context.Context, q querier, bucket string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE bucket = $1`, bucket).Scan(&n)
	if err != nil {
		return 0, oops.Code("RECORD_LEN_FAILED").With("bucket", bucket).Wrap(err)
	}
	return n, nil
}

// isRetryable reports whether err is a transient PostgreSQL conflict worth
// retrying with a fresh transaction.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
