package repositories

import (
	"sync"
	"time"

	"opshq/internal/models"
)

// In-memory реализации хранилищ. Годятся для тестов и dev-режима одного
// процесса; семантика повторяет SQL-репозитории, включая условный
// MarkVerified под мьютексом.

type MemoryAuthChallengeRepository struct {
	mu    sync.Mutex
	items []*models.AuthChallenge
}

func NewMemoryAuthChallengeRepository() *MemoryAuthChallengeRepository {
	return &MemoryAuthChallengeRepository{}
}

func (r *MemoryAuthChallengeRepository) Create(ch *models.AuthChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ch
	r.items = append(r.items, &cp)
	return nil
}

func (r *MemoryAuthChallengeRepository) GetPendingByEmail(email string) (*models.AuthChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	// новые в конце — идём с хвоста
	for i := len(r.items) - 1; i >= 0; i-- {
		ch := r.items[i]
		if ch.Email == email && !ch.Verified && ch.ExpiresAt.After(now) {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryAuthChallengeRepository) CountRecentByEmail(email string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ch := range r.items {
		if ch.Email == email && !ch.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryAuthChallengeRepository) ExpirePending(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, ch := range r.items {
		if ch.Email == email && !ch.Verified && ch.ExpiresAt.After(now) {
			ch.ExpiresAt = now
		}
	}
	return nil
}

func (r *MemoryAuthChallengeRepository) IncrementAttempts(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.items {
		if ch.ID == id {
			ch.Attempts++
			return ch.Attempts, nil
		}
	}
	return 0, nil
}

func (r *MemoryAuthChallengeRepository) ExpireNow(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.items {
		if ch.ID == id {
			ch.ExpiresAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryAuthChallengeRepository) MarkVerified(id, sessionToken string, sessionExpiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.items {
		if ch.ID == id && !ch.Verified {
			ch.Verified = true
			t := sessionToken
			ch.SessionToken = &t
			e := sessionExpiresAt
			ch.SessionExpiresAt = &e
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAuthChallengeRepository) GetBySessionToken(token string) (*models.AuthChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, ch := range r.items {
		if ch.Verified && ch.SessionToken != nil && *ch.SessionToken == token &&
			ch.SessionExpiresAt != nil && ch.SessionExpiresAt.After(now) {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryAuthChallengeRepository) ClearSession(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.items {
		if ch.SessionToken != nil && *ch.SessionToken == token {
			ch.SessionToken = nil
			ch.SessionExpiresAt = nil
		}
	}
	return nil
}

func (r *MemoryAuthChallengeRepository) List(limit, offset int) ([]*models.AuthChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*models.AuthChallenge
	for i := len(r.items) - 1 - offset; i >= 0 && len(res) < limit; i-- {
		cp := *r.items[i]
		res = append(res, &cp)
	}
	return res, nil
}

type MemoryUserRepository struct {
	mu    sync.Mutex
	users []*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{}
}

func (r *MemoryUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users = append(r.users, &cp)
	return nil
}

func (r *MemoryUserRepository) GetByID(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) List(limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*models.User
	for i := offset; i < len(r.users) && len(res) < limit; i++ {
		cp := *r.users[i]
		res = append(res, &cp)
	}
	return res, nil
}

func (r *MemoryUserRepository) GetCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}
