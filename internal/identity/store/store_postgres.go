package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carp/internal/identity/models"
	"carp/internal/platform/postgres"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
)

// PostgresStore persists participants in PostgreSQL.
// Every method runs on the transaction in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const participantColumns = `id, national_id, full_name, account_id, created_at, updated_at`

// Create inserts p. A concurrent insert of the same national ID is reported as
// sentinel.ErrAlreadyUsed without raising an error inside the transaction, so
// the caller can still read the winning row.
func (s *PostgresStore) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (id, national_id, full_name, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
		ON CONFLICT (national_id) DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(p.ID),
		p.NationalID.String(),
		p.FullName,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return s.findOne(ctx, "find participant by id", query, uuid.UUID(participantID))
}

func (s *PostgresStore) FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE national_id = $1`
	return s.findOne(ctx, "find participant by national id", query, nationalID.String())
}

func (s *PostgresStore) FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE account_id = $1`
	return s.findOne(ctx, "find participant by account", query, uuid.UUID(accountID))
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.Participant, error) {
	p, err := scanParticipant(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateName(ctx context.Context, participantID id.ParticipantID, fullName string, updatedAt time.Time) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE participants SET full_name = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(participantID), fullName, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update participant name: %w", err)
	}
	return requireOneRow(res, sentinel.ErrNotFound)
}

// SetAccount claims an unclaimed participant. The account_id IS NULL guard and
// the unique index on account_id make a second claim fail with ErrAlreadyUsed.
func (s *PostgresStore) SetAccount(ctx context.Context, participantID id.ParticipantID, accountID id.AccountID, updatedAt time.Time) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE participants SET account_id = $2, updated_at = $3 WHERE id = $1 AND account_id IS NULL`,
		uuid.UUID(participantID), uuid.UUID(accountID), updatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("set participant account: %w", err)
	}
	return requireOneRow(res, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT count(*) FROM participants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

func requireOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

type participantRow interface {
	Scan(dest ...any) error
}

func scanParticipant(row participantRow) (*models.Participant, error) {
	var (
		pid        uuid.UUID
		nationalID string
		fullName   string
		account    uuid.NullUUID
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&pid, &nationalID, &fullName, &account, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p := &models.Participant{
		ID:         id.ParticipantID(pid),
		NationalID: id.NationalID(nationalID),
		FullName:   fullName,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if account.Valid {
		a := id.AccountID(account.UUID)
		p.AccountID = &a
	}
	return p, nil
}
