package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tokenart/internal/domain"
	"tokenart/internal/infra"
	"tokenart/internal/sqlinline"
)

const defaultMaxAttempts = 5

// txBeginner is the part of *pgxpool.Pool the store needs.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// LedgerStorePG implements domain.Store on PostgreSQL. Updates run as
// SERIALIZABLE transactions and are retried on serialization failures.
type LedgerStorePG struct {
	db          txBeginner
	closeFn     func()
	logger      zerolog.Logger
	maxAttempts int
}

// NewLedgerStore creates a store on pool. Close closes the pool.
func NewLedgerStore(pool *pgxpool.Pool, logger zerolog.Logger) *LedgerStorePG {
	return newLedgerStore(pool, pool.Close, logger)
}

func newLedgerStore(db txBeginner, closeFn func(), logger zerolog.Logger) *LedgerStorePG {
	return &LedgerStorePG{db: db, closeFn: closeFn, logger: logger, maxAttempts: defaultMaxAttempts}
}

// View runs fn in a read-only snapshot.
func (s *LedgerStorePG) View(ctx context.Context, fn func(domain.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return fn(pgTxn{run: infra.NewSQLRunner(tx, s.logger)})
}

// Update runs fn in a serializable transaction and commits when fn returns nil.
func (s *LedgerStorePG) Update(ctx context.Context, fn func(domain.Txn) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.updateOnce(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Debug().Int("attempt", attempt).Err(err).Msg("ledger update conflict, retrying")
	}
	return fmt.Errorf("ledger update: gave up after %d attempts: %w", s.maxAttempts, err)
}

func (s *LedgerStorePG) updateOnce(ctx context.Context, fn func(domain.Txn) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	if err := fn(pgTxn{run: infra.NewSQLRunner(tx, s.logger), forUpdate: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *LedgerStorePG) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

type pgTxn struct {
	run       *infra.SQLRunner
	forUpdate bool
}

func (t pgTxn) Get(ctx context.Context, key domain.Key) ([]byte, bool, error) {
	query := sqlinline.QSelectLedgerEntry
	if t.forUpdate {
		query = sqlinline.QSelectLedgerEntryForUpdate
	}
	var value []byte
	err := t.run.QueryRow(ctx, query, string(key.Space), targetBytes(key.Target), int64(key.Seq)).Scan(&value)
	if infra.IsNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key.Space, err)
	}
	return value, true, nil
}

func (t pgTxn) Set(ctx context.Context, key domain.Key, value []byte) error {
	if !t.forUpdate {
		return errors.New("ledger: write in read-only view")
	}
	if _, err := t.run.Exec(ctx, sqlinline.QUpsertLedgerEntry, string(key.Space), targetBytes(key.Target), int64(key.Seq), value); err != nil {
		return fmt.Errorf("set %s: %w", key.Space, err)
	}
	return nil
}

func (t pgTxn) SetIfAbsent(ctx context.Context, key domain.Key, value []byte) (bool, error) {
	if !t.forUpdate {
		return false, errors.New("ledger: write in read-only view")
	}
	tag, err := t.run.Exec(ctx, sqlinline.QInsertLedgerEntryIfAbsent, string(key.Space), targetBytes(key.Target), int64(key.Seq), value)
	if err != nil {
		return false, fmt.Errorf("set if absent %s: %w", key.Space, err)
	}
	return tag.RowsAffected() == 1, nil
}

func targetBytes(t domain.TargetID) []byte {
	if t == nil {
		return []byte{}
	}
	return []byte(t)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var _ domain.Store = (*LedgerStorePG)(nil)
