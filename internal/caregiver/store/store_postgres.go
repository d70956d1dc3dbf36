package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carp/internal/caregiver/models"
	"carp/internal/platform/postgres"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
)

// PostgresStore persists caregiver links in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Link inserts the edge. A participant that already has a caregiver yields
// sentinel.ErrAlreadyUsed without aborting the surrounding transaction.
func (s *PostgresStore) Link(ctx context.Context, link models.Link) error {
	query := `
		INSERT INTO caregiver_links (caregiver_id, participant_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id) DO NOTHING
		RETURNING participant_id
	`
	var inserted uuid.UUID
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(link.CaregiverID),
		uuid.UUID(link.ParticipantID),
		link.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("link caregiver: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByParticipant(ctx context.Context, participantID id.ParticipantID) (*models.Link, error) {
	query := `SELECT caregiver_id, participant_id, created_at FROM caregiver_links WHERE participant_id = $1`
	link, err := scanLink(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(participantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find caregiver link: %w", err)
	}
	return link, nil
}

// Unlink removes the edge only when it belongs to caregiverID.
func (s *PostgresStore) Unlink(ctx context.Context, caregiverID id.AccountID, participantID id.ParticipantID) (bool, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM caregiver_links WHERE caregiver_id = $1 AND participant_id = $2`,
		uuid.UUID(caregiverID), uuid.UUID(participantID),
	)
	if err != nil {
		return false, fmt.Errorf("unlink caregiver: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlink caregiver rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListByCaregiver(ctx context.Context, caregiverID id.AccountID) ([]models.Link, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT caregiver_id, participant_id, created_at FROM caregiver_links WHERE caregiver_id = $1 ORDER BY created_at`,
		uuid.UUID(caregiverID),
	)
	if err != nil {
		return nil, fmt.Errorf("list caregiver links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caregiver link: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caregiver links: %w", err)
	}
	return links, nil
}

type linkRow interface {
	Scan(dest ...any) error
}

func scanLink(row linkRow) (*models.Link, error) {
	var caregiver, participant uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&caregiver, &participant, &createdAt); err != nil {
		return nil, err
	}
	return &models.Link{
		CaregiverID:   id.AccountID(caregiver),
		ParticipantID: id.ParticipantID(participant),
		CreatedAt:     createdAt,
	}, nil
}
