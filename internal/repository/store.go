package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories run
// unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories and scopes them to a transaction on demand.
type Store interface {
	Tickets() TicketRepository
	Transitions() TransitionRepository
	Departments() DepartmentRepository
	Users() UserRepository
	// WithinTx runs fn against repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithinTx on a store already bound to a transaction reuses it.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewStore returns a Postgres-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository         { return &ticketRepository{db: s.db} }
func (s *pgStore) Transitions() TransitionRepository { return &transitionRepository{db: s.db} }
func (s *pgStore) Departments() DepartmentRepository { return &departmentRepository{db: s.db} }
func (s *pgStore) Users() UserRepository             { return &userRepository{db: s.db} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// Rollback after a cancelled request must still reach the server.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&pgStore{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
