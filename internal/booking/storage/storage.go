// Package storage is the PostgreSQL implementation of the booking store,
// the user directory and the town geography.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const jobColumns = `
	id, customer_id, status, due, from_language_id, gender, certification,
	job_type, immediate, customer_phone_type, customer_physical_type,
	duration_min, town, address, instructions, customer_email, reference,
	admin_comments, session_time, end_at, withdraw_at, will_expire_at,
	ignore, ignore_expired, reminder_16_sent, reminder_48_sent,
	specific_translator_id, created_at, updated_at
`

func (s *Storage) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (
			:id, :customer_id, :status, :due, :from_language_id, :gender,
			:certification, :job_type, :immediate, :customer_phone_type,
			:customer_physical_type, :duration_min, :town, :address,
			:instructions, :customer_email, :reference, :admin_comments,
			:session_time, :end_at, :withdraw_at, :will_expire_at,
			:ignore, :ignore_expired, :reminder_16_sent, :reminder_48_sent,
			:specific_translator_id, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) SaveJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs SET
			status = :status,
			due = :due,
			from_language_id = :from_language_id,
			gender = :gender,
			certification = :certification,
			job_type = :job_type,
			immediate = :immediate,
			customer_phone_type = :customer_phone_type,
			customer_physical_type = :customer_physical_type,
			duration_min = :duration_min,
			town = :town,
			address = :address,
			instructions = :instructions,
			customer_email = :customer_email,
			reference = :reference,
			admin_comments = :admin_comments,
			session_time = :session_time,
			end_at = :end_at,
			withdraw_at = :withdraw_at,
			will_expire_at = :will_expire_at,
			ignore = :ignore,
			ignore_expired = :ignore_expired,
			reminder_16_sent = :reminder_16_sent,
			reminder_48_sent = :reminder_48_sent,
			specific_translator_id = :specific_translator_id,
			updated_at = :updated_at
		WHERE id = :id
	`

	res, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

func (s *Storage) ExpiredPendingJobs(ctx context.Context, now time.Time) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending'
		  AND NOT ignore_expired
		  AND will_expire_at IS NOT NULL
		  AND will_expire_at < $1
		ORDER BY will_expire_at
	`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, now); err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	return jobs, nil
}

const assignmentColumns = `
	id, job_id, translator_id, created_at, cancel_at, completed_at, completed_by
`

func (s *Storage) GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	var a domain.Assignment
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE job_id = $1 AND cancel_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &a, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}

	return &a, nil
}

func (s *Storage) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :job_id, :translator_id, :created_at, :cancel_at, :completed_at, :completed_by)
	`

	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

func (s *Storage) CancelAssignment(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE assignments SET cancel_at = $2 WHERE id = $1 AND cancel_at IS NULL`

	res, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to cancel assignment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAssignmentNotFound
	}

	return nil
}

func (s *Storage) CompleteAssignment(ctx context.Context, id, completedBy string, at time.Time) error {
	query := `
		UPDATE assignments
		SET completed_at = $2, completed_by = $3
		WHERE id = $1 AND cancel_at IS NULL AND completed_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, id, at, completedBy)
	if err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAssignmentNotFound
	}

	return nil
}

func (s *Storage) CancelActiveAssignments(ctx context.Context, jobID string, at time.Time) error {
	query := `UPDATE assignments SET cancel_at = $2 WHERE job_id = $1 AND cancel_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, jobID, at); err != nil {
		return fmt.Errorf("failed to cancel assignments: %w", err)
	}

	return nil
}

// AssignTranslator flips the job from pending to assigned and inserts the
// assignment row in one transaction. The conditional UPDATE carries the
// race: with N concurrent acceptances of the same job exactly one statement
// reports an affected row, the rest roll back with ErrAlreadyAssigned.
func (s *Storage) AssignTranslator(ctx context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'assigned', updated_at = $2 WHERE id = $1 AND status = 'pending'`,
		jobID, at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assign job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return nil, domain.ErrAlreadyAssigned
	}

	a := &domain.Assignment{
		ID:           uuid.New().String(),
		JobID:        jobID,
		TranslatorID: translatorID,
		CreatedAt:    at,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignments (id, job_id, translator_id, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.JobID, a.TranslatorID, a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}

	return a, nil
}

func (s *Storage) HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM assignments a
			JOIN jobs j ON j.id = a.job_id
			WHERE a.translator_id = $1
			  AND a.cancel_at IS NULL
			  AND j.due <= $2
			  AND j.due + (j.duration_min * interval '1 minute') > $2
		)
	`

	var conflict bool
	if err := s.db.GetContext(ctx, &conflict, query, translatorID, due); err != nil {
		return false, fmt.Errorf("failed to check conflicting assignments: %w", err)
	}

	return conflict, nil
}

func (s *Storage) Blacklist(ctx context.Context, customerID string) ([]string, error) {
	query := `SELECT translator_id FROM customer_blacklist WHERE customer_id = $1`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}

	return ids, nil
}

func (s *Storage) HasDeclined(ctx context.Context, jobID, translatorID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM job_declines
			WHERE job_id = $1 AND translator_id = $2
		)
	`

	var declined bool
	if err := s.db.GetContext(ctx, &declined, query, jobID, translatorID); err != nil {
		return false, fmt.Errorf("failed to check declines: %w", err)
	}

	return declined, nil
}

// userRow is the scan target for user queries; levels and languages come in
// as PostgreSQL array aggregates.
type userRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	Mobile            string         `db:"mobile"`
	City              string         `db:"city"`
	Gender            string         `db:"gender"`
	TranslatorType    string         `db:"translator_type"`
	SuppressAll       bool           `db:"suppress_all"`
	SuppressEmergency bool           `db:"suppress_emergency"`
	SuppressNighttime bool           `db:"suppress_nighttime"`
	Levels            pq.StringArray `db:"levels"`
	Languages         pq.StringArray `db:"languages"`
}

func (r *userRow) toMeta() domain.UserMeta {
	levels := make([]domain.TranslatorLevel, 0, len(r.Levels))
	for _, l := range r.Levels {
		levels = append(levels, domain.TranslatorLevel(l))
	}
	return domain.UserMeta{
		UserID:            r.ID,
		Name:              r.Name,
		Email:             r.Email,
		Mobile:            r.Mobile,
		City:              r.City,
		Gender:            domain.Gender(r.Gender),
		TranslatorType:    domain.TranslatorType(r.TranslatorType),
		Levels:            levels,
		Languages:         r.Languages,
		SuppressAll:       r.SuppressAll,
		SuppressEmergency: r.SuppressEmergency,
		SuppressNighttime: r.SuppressNighttime,
	}
}

const userSelect = `
	SELECT
		u.id, u.name, u.email, u.mobile, u.city, u.gender, u.translator_type,
		u.suppress_all, u.suppress_emergency, u.suppress_nighttime,
		COALESCE(array_agg(DISTINCT ql.level) FILTER (WHERE ql.level IS NOT NULL), '{}') AS levels,
		COALESCE(array_agg(DISTINCT ulang.language_id) FILTER (WHERE ulang.language_id IS NOT NULL), '{}') AS languages
	FROM users u
	LEFT JOIN user_levels ql ON ql.user_id = u.id
	LEFT JOIN user_languages ulang ON ulang.user_id = u.id
`

const userGroupBy = `
	GROUP BY u.id, u.name, u.email, u.mobile, u.city, u.gender, u.translator_type,
		u.suppress_all, u.suppress_emergency, u.suppress_nighttime
`

func (s *Storage) UserMeta(ctx context.Context, userID string) (*domain.UserMeta, error) {
	var row userRow
	query := userSelect + ` WHERE u.id = $1 ` + userGroupBy

	err := s.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	meta := row.toMeta()
	return &meta, nil
}

func (s *Storage) ActiveTranslators(ctx context.Context) ([]domain.UserMeta, error) {
	var rows []userRow
	query := userSelect + ` WHERE u.role = 'translator' AND u.enabled ` + userGroupBy

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	pool := make([]domain.UserMeta, 0, len(rows))
	for i := range rows {
		pool = append(pool, rows[i].toMeta())
	}

	return pool, nil
}

func (s *Storage) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	query := `SELECT id FROM users WHERE email = $1`

	err := s.db.GetContext(ctx, &id, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to resolve email: %w", err)
	}

	return id, nil
}

func (s *Storage) LanguageName(ctx context.Context, langID string) (string, error) {
	var name string
	query := `SELECT name FROM languages WHERE id = $1`

	err := s.db.GetContext(ctx, &name, query, langID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to resolve language: %w", err)
	}

	return name, nil
}

// TownsCompatible reports whether the customer and the translator share at
// least one operating town, which physical sessions require.
func (s *Storage) TownsCompatible(ctx context.Context, customerID, translatorID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM user_towns ct
			JOIN user_towns tt ON tt.town_id = ct.town_id
			WHERE ct.user_id = $1 AND tt.user_id = $2
		)
	`

	var compatible bool
	if err := s.db.GetContext(ctx, &compatible, query, customerID, translatorID); err != nil {
		return false, fmt.Errorf("failed to check towns: %w", err)
	}

	return compatible, nil
}
