package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"opshq/internal/models"
)

type AuthChallengeRepository interface {
	Create(ch *models.AuthChallenge) error
	GetPendingByEmail(email string) (*models.AuthChallenge, error)
	CountRecentByEmail(email string, since time.Time) (int, error)
	ExpirePending(email string) error
	IncrementAttempts(id string) (int, error)
	ExpireNow(id string) error
	MarkVerified(id, sessionToken string, sessionExpiresAt time.Time) (bool, error)
	GetBySessionToken(token string) (*models.AuthChallenge, error)
	ClearSession(token string) error
	List(limit, offset int) ([]*models.AuthChallenge, error)
}

type authChallengeRepository struct {
	DB *sql.DB
}

func NewAuthChallengeRepository(db *sql.DB) AuthChallengeRepository {
	return &authChallengeRepository{DB: db}
}

// Create — создаёт новую запись (каждая отправка кода — новая строка).
func (r *authChallengeRepository) Create(ch *models.AuthChallenge) error {
	const q = `
		INSERT INTO auth_challenges (id, email, code_hash, verified, attempts, created_at, expires_at)
		VALUES ($1, $2, $3, FALSE, 0, $4, $5)
	`
	if _, err := r.DB.Exec(q, ch.ID, ch.Email, ch.CodeHash, ch.CreatedAt, ch.ExpiresAt); err != nil {
		return fmt.Errorf("auth_challenge create: %w", err)
	}
	return nil
}

// GetPendingByEmail — последний непогашенный и непросроченный код (по created_at DESC).
func (r *authChallengeRepository) GetPendingByEmail(email string) (*models.AuthChallenge, error) {
	const q = `
		SELECT id, email, code_hash, session_token, verified, attempts, created_at, expires_at, session_expires_at
		FROM auth_challenges
		WHERE email = $1 AND verified = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`
	ch, err := scanChallenge(r.DB.QueryRow(q, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_challenge pending: %w", err)
	}
	return ch, nil
}

// CountRecentByEmail — сколько кодов выдали за последнее окно (для троттлинга).
func (r *authChallengeRepository) CountRecentByEmail(email string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM auth_challenges
		WHERE email = $1 AND created_at >= $2
	`
	var c int
	if err := r.DB.QueryRow(q, email, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("auth_challenge count recent: %w", err)
	}
	return c, nil
}

// ExpirePending — гасим все висящие коды для email перед выдачей нового,
// чтобы живым оставался ровно один код.
func (r *authChallengeRepository) ExpirePending(email string) error {
	const q = `
		UPDATE auth_challenges
		SET expires_at = NOW()
		WHERE email = $1 AND verified = FALSE AND expires_at > NOW()
	`
	if _, err := r.DB.Exec(q, email); err != nil {
		return fmt.Errorf("auth_challenge expire pending: %w", err)
	}
	return nil
}

// IncrementAttempts — +1 попытка, возвращает новое значение attempts.
func (r *authChallengeRepository) IncrementAttempts(id string) (int, error) {
	const q = `
		UPDATE auth_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("auth_challenge increment attempts: %w", err)
	}
	return attempts, nil
}

// ExpireNow — моментально "протухаем" код (используем при превышении попыток).
func (r *authChallengeRepository) ExpireNow(id string) error {
	_, err := r.DB.Exec(`UPDATE auth_challenges SET expires_at = NOW() WHERE id=$1`, id)
	return err
}

// MarkVerified — условный одношаговый апдейт: при гонке выигрывает ровно один
// вызов, остальным вернётся false.
func (r *authChallengeRepository) MarkVerified(id, sessionToken string, sessionExpiresAt time.Time) (bool, error) {
	const q = `
		UPDATE auth_challenges
		SET verified = TRUE, session_token = $2, session_expires_at = $3
		WHERE id = $1 AND verified = FALSE
	`
	res, err := r.DB.Exec(q, id, sessionToken, sessionExpiresAt)
	if err != nil {
		return false, fmt.Errorf("auth_challenge mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("auth_challenge mark verified: %w", err)
	}
	return n == 1, nil
}

// GetBySessionToken — живая сессия: токен совпал и session_expires_at ещё впереди.
func (r *authChallengeRepository) GetBySessionToken(token string) (*models.AuthChallenge, error) {
	const q = `
		SELECT id, email, code_hash, session_token, verified, attempts, created_at, expires_at, session_expires_at
		FROM auth_challenges
		WHERE session_token = $1 AND verified = TRUE AND session_expires_at > NOW()
	`
	ch, err := scanChallenge(r.DB.QueryRow(q, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_challenge by session: %w", err)
	}
	return ch, nil
}

func (r *authChallengeRepository) ClearSession(token string) error {
	const q = `
		UPDATE auth_challenges
		SET session_token = NULL, session_expires_at = NULL
		WHERE session_token = $1
	`
	if _, err := r.DB.Exec(q, token); err != nil {
		return fmt.Errorf("auth_challenge clear session: %w", err)
	}
	return nil
}

func (r *authChallengeRepository) List(limit, offset int) ([]*models.AuthChallenge, error) {
	const q = `
		SELECT id, email, code_hash, session_token, verified, attempts, created_at, expires_at, session_expires_at
		FROM auth_challenges
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.Query(q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auth_challenge list: %w", err)
	}
	defer rows.Close()

	var res []*models.AuthChallenge
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("auth_challenge list scan: %w", err)
		}
		res = append(res, ch)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*models.AuthChallenge, error) {
	ch := &models.AuthChallenge{}
	var (
		st  sql.NullString
		ste sql.NullTime
	)
	if err := row.Scan(
		&ch.ID, &ch.Email, &ch.CodeHash, &st, &ch.Verified, &ch.Attempts,
		&ch.CreatedAt, &ch.ExpiresAt, &ste,
	); err != nil {
		return nil, err
	}
	if st.Valid {
		s := st.String
		ch.SessionToken = &s
	}
	if ste.Valid {
		t := ste.Time
		ch.SessionExpiresAt = &t
	}
	return ch, nil
}
