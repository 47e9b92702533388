package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"opshq/internal/models"
	"opshq/internal/repositories"
	"opshq/internal/utils"
)

var (
	ErrDeliveryFailed     = errors.New("code delivery failed")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrInvalidCode        = errors.New("code invalid")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrIssueThrottled     = errors.New("issue throttled")
	ErrInvalidSession     = errors.New("invalid session")
)

// Настройки безопасности (можно вынести в конфиг при желании)
const (
	maxIssuesPerWindow = 3
	issueWindow        = 10 * time.Minute
	maxVerifyAttempts  = 5
	codeDigits         = 6

	DefaultCodeTTL    = 10 * time.Minute
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// SessionClaims — подписанная часть сессионного токена. Токен при этом
// хранится в auth_challenges целиком, поэтому отзыв работает через БД.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type VerifyResult struct {
	UserID       string
	SessionToken string
	ExpiresAt    time.Time
}

type AuthService interface {
	// IssueCode возвращает созданный challenge и сам код (код наружу из
	// HTTP-слоя не отдаётся, он уходит только в письмо).
	IssueCode(email string) (*models.AuthChallenge, string, error)
	VerifyCode(email, code string) (*VerifyResult, error)
	ResolveSession(credential string) (*models.User, error)
	Logout(credential string) error
	ListChallenges(limit, offset int) ([]*models.AuthChallenge, error)
}

type authService struct {
	challenges repositories.AuthChallengeRepository
	users      repositories.UserRepository
	emails     EmailService
	notifier   *OpsNotifier

	jwtKey     []byte
	codeTTL    time.Duration
	sessionTTL time.Duration
}

func NewAuthService(
	challenges repositories.AuthChallengeRepository,
	users repositories.UserRepository,
	emails EmailService,
	notifier *OpsNotifier,
	jwtKey []byte,
	codeTTL, sessionTTL time.Duration,
) AuthService {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &authService{
		challenges: challenges,
		users:      users,
		emails:     emails,
		notifier:   notifier,
		jwtKey:     jwtKey,
		codeTTL:    codeTTL,
		sessionTTL: sessionTTL,
	}
}

// IssueCode — выдаёт новый код для email. Все прежние висящие коды гасятся,
// живым остаётся ровно один. Запись фиксируется до отправки письма: при сбое
// доставки она остаётся и истечёт сама.
func (s *authService) IssueCode(email string) (*models.AuthChallenge, string, error) {
	email = normalizeEmail(email)

	// Троттлинг выдач: не чаще 3/10мин
	since := time.Now().Add(-issueWindow)
	cnt, err := s.challenges.CountRecentByEmail(email, since)
	if err != nil {
		return nil, "", err
	}
	if cnt >= maxIssuesPerWindow {
		return nil, "", ErrIssueThrottled
	}

	code, err := utils.NewLoginCode(codeDigits)
	if err != nil {
		return nil, "", fmt.Errorf("generate code: %w", err)
	}
	codeHashBytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("bcrypt generate: %w", err)
	}

	if err := s.challenges.ExpirePending(email); err != nil {
		return nil, "", err
	}

	now := time.Now()
	ch := &models.AuthChallenge{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  string(codeHashBytes),
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.challenges.Create(ch); err != nil {
		return nil, "", err
	}

	if err := s.emails.SendLoginCode(email, code); err != nil {
		log.Printf("[auth][issue] delivery failed email=%s challenge=%s err=%v", email, ch.ID, err)
		s.notifier.NotifyDeliveryFailure(email, err)
		return ch, "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	log.Printf("[auth][issue] code sent email=%s challenge=%s exp_at=%s", email, ch.ID, ch.ExpiresAt.Format(time.RFC3339))
	return ch, code, nil
}

// VerifyCode — сверяет код с bcrypt-хэшем последнего висящего challenge,
// считает попытки и TTL. Погашение кода — условный апдейт, под гонкой
// выигрывает ровно один вызов.
func (s *authService) VerifyCode(email, code string) (*VerifyResult, error) {
	email = normalizeEmail(email)

	ch, err := s.challenges.GetPendingByEmail(email)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrNoPendingChallenge
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)); err != nil {
		// неверный код => увеличиваем attempts
		attempts, incErr := s.challenges.IncrementAttempts(ch.ID)
		if incErr != nil {
			return nil, incErr
		}
		if attempts >= maxVerifyAttempts {
			_ = s.challenges.ExpireNow(ch.ID)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}

	// Пользователь заводится лениво; find-or-create идемпотентен, поэтому
	// безопасен и для проигравших гонку.
	user, err := s.findOrCreateUser(email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sessionExpiresAt := now.Add(s.sessionTTL)
	token, err := s.mintSessionToken(user.ID, now, sessionExpiresAt)
	if err != nil {
		return nil, err
	}

	ok, err := s.challenges.MarkVerified(ch.ID, token, sessionExpiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// параллельный запрос уже погасил этот код
		return nil, ErrNoPendingChallenge
	}

	log.Printf("[auth][verify] OK email=%s user=%s challenge=%s", email, user.ID, ch.ID)
	return &VerifyResult{UserID: user.ID, SessionToken: token, ExpiresAt: sessionExpiresAt}, nil
}

// ResolveSession — подпись и exp проверяем по JWT, затем требуем живую запись
// в хранилище: так logout/отзыв действует немедленно независимо от exp.
func (s *authService) ResolveSession(credential string) (*models.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrInvalidSession
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		// защита: принимаем только HMAC (HS256 и т.п.)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	ch, err := s.challenges.GetBySessionToken(credential)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByEmail(ch.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID != claims.UserID {
		return nil, ErrInvalidSession
	}
	return user, nil
}

// Logout — отзываем сессию в хранилище. Неизвестный токен не ошибка:
// клиент в любом случае выбрасывает cookie.
func (s *authService) Logout(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil
	}
	return s.challenges.ClearSession(credential)
}

func (s *authService) ListChallenges(limit, offset int) ([]*models.AuthChallenge, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.challenges.List(limit, offset)
}

func (s *authService) findOrCreateUser(email string) (*models.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now(),
	}
	if err := s.users.Create(user); err != nil {
		// вероятно, проиграли гонку на unique(email) — перечитываем
		existing, getErr := s.users.GetByEmail(email)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	log.Printf("[auth][user] created user=%s email=%s", user.ID, email)
	return user, nil
}

func (s *authService) mintSessionToken(userID string, now, expiresAt time.Time) (string, error) {
	jti, err := utils.NewOpaqueToken(16)
	if err != nil {
		return "", err
	}
	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
