package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"carp/internal/platform/postgres"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
)

// PostgresStore persists events and registrations in PostgreSQL.
// This store is pure I/O: capacity and duplicate decisions belong to the service,
// which calls it inside one transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, title, description, venue, starts_at, max_capacity, created_at`

func (s *PostgresStore) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO events (id, title, description, venue, starts_at, max_capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(e.ID), e.Title, e.Description, e.Venue, e.StartsAt, e.MaxCapacity, e.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	return s.findEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID)
}

// LockEvent reads the event and holds its row lock until the transaction ends.
// Every admission to the event queues behind this lock, which makes the
// count-then-insert that follows atomic per event.
func (s *PostgresStore) LockEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	return s.findEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID)
}

func (s *PostgresStore) findEvent(ctx context.Context, query string, eventID id.EventID) (*models.Event, error) {
	e, err := scanEvent(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(eventID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) CountByEvent(ctx context.Context, eventID id.EventID) (int, error) {
	var n int
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM registrations WHERE event_id = $1`, uuid.UUID(eventID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// CountByEvents counts registrations for many events in one round trip.
func (s *PostgresStore) CountByEvents(ctx context.Context, eventIDs []id.EventID) (map[id.EventID]int, error) {
	counts := make(map[id.EventID]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}
	raw := make([]string, len(eventIDs))
	for i, eventID := range eventIDs {
		raw[i] = eventID.String()
		counts[eventID] = 0
	}

	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT event_id, count(*)
		FROM registrations
		WHERE event_id = ANY($1::uuid[])
		GROUP BY event_id
	`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("count registrations by event: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID uuid.UUID
		var n int
		if err := rows.Scan(&eventID, &n); err != nil {
			return nil, fmt.Errorf("scan registration count: %w", err)
		}
		counts[id.EventID(eventID)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration counts: %w", err)
	}
	return counts, nil
}

// Insert adds reg. An existing (event, participant) pair yields
// sentinel.ErrAlreadyUsed without aborting the surrounding transaction.
func (s *PostgresStore) Insert(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (id, event_id, participant_id, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, participant_id) DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(reg.ID),
		uuid.UUID(reg.EventID),
		uuid.UUID(reg.ParticipantID),
		reg.Source.String(),
		reg.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, eventID id.EventID, participantID id.ParticipantID) (bool, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM registrations WHERE event_id = $1 AND participant_id = $2`,
		uuid.UUID(eventID), uuid.UUID(participantID),
	)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]models.Registration, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, event_id, participant_id, source, created_at
		FROM registrations
		WHERE participant_id = $1
		ORDER BY created_at DESC
	`, uuid.UUID(participantID))
	if err != nil {
		return nil, fmt.Errorf("list participant registrations: %w", err)
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

// List returns registrations newest first, optionally for one event.
func (s *PostgresStore) List(ctx context.Context, eventID *id.EventID) ([]models.RegistrationView, error) {
	var filter uuid.NullUUID
	if eventID != nil {
		filter = uuid.NullUUID{UUID: uuid.UUID(*eventID), Valid: true}
	}
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT r.id, r.event_id, r.participant_id, r.source, r.created_at,
		       e.title, p.full_name, p.national_id
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		JOIN participants p ON p.id = r.participant_id
		WHERE $1::uuid IS NULL OR r.event_id = $1
		ORDER BY r.created_at DESC
	`, filter)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var views []models.RegistrationView
	for rows.Next() {
		var (
			regID, evID, pID uuid.UUID
			source           string
			createdAt        time.Time
			view             models.RegistrationView
		)
		if err := rows.Scan(&regID, &evID, &pID, &source, &createdAt,
			&view.EventTitle, &view.ParticipantName, &view.NationalID); err != nil {
			return nil, fmt.Errorf("scan registration view: %w", err)
		}
		view.Registration = models.Registration{
			ID:            id.RegistrationID(regID),
			EventID:       id.EventID(evID),
			ParticipantID: id.ParticipantID(pID),
			Source:        id.RegistrationSource(source),
			CreatedAt:     createdAt,
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration views: %w", err)
	}
	return views, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		eventID uuid.UUID
		e       models.Event
	)
	if err := row.Scan(&eventID, &e.Title, &e.Description, &e.Venue, &e.StartsAt, &e.MaxCapacity, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.ID = id.EventID(eventID)
	return &e, nil
}

func scanRegistration(row scanner) (*models.Registration, error) {
	var (
		regID, eventID, participantID uuid.UUID
		source                        string
		createdAt                     time.Time
	)
	if err := row.Scan(&regID, &eventID, &participantID, &source, &createdAt); err != nil {
		return nil, err
	}
	return &models.Registration{
		ID:            id.RegistrationID(regID),
		EventID:       id.EventID(eventID),
		ParticipantID: id.ParticipantID(participantID),
		Source:        id.RegistrationSource(source),
		CreatedAt:     createdAt,
	}, nil
}
