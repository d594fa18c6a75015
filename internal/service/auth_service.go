package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"lookmeal-admin/internal/domain"
	"lookmeal-admin/internal/store"
)

var (
	// ErrAlreadyRegistered is returned when registering an email that already has an account.
	ErrAlreadyRegistered = errors.New("email already registered")
	// ErrNotRegistered is returned when logging in with an unknown email.
	ErrNotRegistered = errors.New("email not registered")
	// ErrInvalidPassword is returned when the email is known but the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrSamePassword is returned when a password reset supplies the current password.
	ErrSamePassword = errors.New("new password must be different from current password")
	// ErrStorageUnavailable is returned when persisted state cannot be read or written.
	ErrStorageUnavailable = errors.New("persisted state unavailable")
)

const defaultRole = "管理者"

// Result is the outcome of a session-store operation. Failures carry a
// sentinel in Err and a user-facing message; none of them are fatal.
type Result struct {
	Success bool
	Message string
	Err     error
}

func succeed(message string) Result {
	return Result{Success: true, Message: message}
}

func fail(err error, message string) Result {
	return Result{Message: message, Err: err}
}

// AuthConfig carries the tunables of the session store.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// Latency is waited out at the start of every mutating operation to
	// preserve the loading-state semantics of the console. Zero disables it.
	Latency time.Duration
}

// AuthService owns registered accounts and the current session. All state
// lives in the backing store under the console's well-known keys; the active
// session is mirrored in memory for route guarding.
type AuthService struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
	latency  time.Duration
	logger   logrus.FieldLogger

	mu      sync.Mutex
	session *domain.Session
}

// NewAuthService builds the session store and restores a persisted session,
// if any. A corrupt session entry is cleared rather than surfaced.
func NewAuthService(ctx context.Context, st store.Store, cfg AuthConfig, logger logrus.FieldLogger) (*AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}

	s := &AuthService{
		store:    st,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
		latency:  cfg.Latency,
		logger:   logger,
	}
	s.restoreSession(ctx)
	return s, nil
}

func (s *AuthService) restoreSession(ctx context.Context) {
	data, ok, err := s.store.Get(ctx, store.KeyUserData)
	if err != nil || !ok {
		return
	}
	if _, ok, err = s.store.Get(ctx, store.KeyAuthToken); err != nil || !ok {
		return
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		s.logger.Warnf("stored session is corrupt, clearing: %v", err)
		_ = s.store.Delete(ctx, store.KeyUserData)
		_ = s.store.Delete(ctx, store.KeyAuthToken)
		return
	}

	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()
}

// Register creates an account for the email unless one already exists
// (case-insensitively). The password is stored as a bcrypt hash only.
func (s *AuthService) Register(ctx context.Context, email, password string) Result {
	s.simulateLatency(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fail(errors.New("email and password are required"), "メールアドレスとパスワードを入力してください")
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}
	if findAccount(accounts, email) >= 0 {
		return fail(ErrAlreadyRegistered, "このメールアドレスは既に登録されています")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(err, "アカウントの作成に失敗しました")
	}

	accounts = append(accounts, domain.RegisteredAccount{
		Email:        email,
		PasswordHash: string(hash),
		RegisteredAt: time.Now().UTC(),
	})
	if err := s.saveAccounts(ctx, accounts); err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}

	s.logger.Infof("registered account for %s", normalizeEmail(email))
	return succeed("アカウントが作成されました")
}

// Login verifies credentials and opens a session. Unknown emails and wrong
// passwords fail distinctly so the console can show the right message.
func (s *AuthService) Login(ctx context.Context, email, password string) Result {
	s.simulateLatency(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}

	idx := findAccount(accounts, email)
	if idx < 0 {
		return fail(ErrNotRegistered, "このメールアドレスは登録されていません")
	}
	account := accounts[idx]
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return fail(ErrInvalidPassword, "パスワードが正しくありません")
	}

	session := &domain.Session{
		ID:    uuid.NewString(),
		Email: account.Email,
		Name:  localPart(account.Email),
		Role:  defaultRole,
	}

	token, err := s.mintToken(session)
	if err != nil {
		return fail(err, "ログインに失敗しました")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fail(err, "ログインに失敗しました")
	}
	if err := s.store.Set(ctx, store.KeyAuthToken, token); err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}
	if err := s.store.Set(ctx, store.KeyUserData, string(data)); err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}

	s.session = session
	s.logger.Infof("session opened for %s", normalizeEmail(account.Email))
	return succeed("ログインしました")
}

// ResetPassword sets a new password for the email. An unknown email is
// registered on the spot: the console's set-password screen doubles as
// first-run registration, so the reset path must not reject new emails.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) Result {
	s.simulateLatency(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" || newPassword == "" {
		return fail(errors.New("email and password are required"), "メールアドレスとパスワードを入力してください")
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}

	idx := findAccount(accounts, email)
	if idx < 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fail(err, "アカウントの作成に失敗しました")
		}
		accounts = append(accounts, domain.RegisteredAccount{
			Email:        email,
			PasswordHash: string(hash),
			RegisteredAt: time.Now().UTC(),
		})
		if err := s.saveAccounts(ctx, accounts); err != nil {
			return fail(ErrStorageUnavailable, "エラーが発生しました")
		}
		s.logger.Infof("registered account for %s via password reset", normalizeEmail(email))
		return succeed("アカウントが作成されました")
	}

	account := accounts[idx]
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(newPassword)) == nil {
		return fail(ErrSamePassword, "新しいパスワードが現在のパスワードと同じです")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fail(err, "パスワードのリセットに失敗しました")
	}
	now := time.Now().UTC()
	account.PasswordHash = string(hash)
	account.PasswordResetAt = &now
	accounts[idx] = account

	if err := s.saveAccounts(ctx, accounts); err != nil {
		return fail(ErrStorageUnavailable, "エラーが発生しました")
	}
	s.logger.Infof("password reset for %s", normalizeEmail(email))
	return succeed("パスワードが設定されました")
}

// Logout closes the session, clears the persisted auth entries, and arms the
// one-shot just-logged-out flag consumed by the landing navigation.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, store.KeyAuthToken); err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	if err := s.store.Delete(ctx, store.KeyUserData); err != nil {
		return fmt.Errorf("clear user data: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyJustLoggedOut, "true"); err != nil {
		return fmt.Errorf("set just-logged-out flag: %w", err)
	}

	s.session = nil
	s.logger.Info("session closed")
	return nil
}

// ConsumeJustLoggedOut reports whether a logout just happened and clears the
// flag, so the signal suppresses exactly one redirect.
func (s *AuthService) ConsumeJustLoggedOut(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.store.Get(ctx, store.KeyJustLoggedOut)
	if err != nil || !ok {
		return false
	}
	_ = s.store.Delete(ctx, store.KeyJustLoggedOut)
	return true
}

// IsRegistered reports whether an account exists for the email, ignoring case.
func (s *AuthService) IsRegistered(ctx context.Context, email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return false
	}
	return findAccount(accounts, email) >= 0
}

// HasRegisteredAccounts reports whether any account has been registered.
func (s *AuthService) HasRegisteredAccounts(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return false
	}
	return len(accounts) > 0
}

// IsAuthenticated reports whether a session is active.
func (s *AuthService) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// CurrentSession returns a copy of the active session, or nil.
func (s *AuthService) CurrentSession() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	session := *s.session
	return &session
}

// AuthToken returns the persisted session marker, if any.
func (s *AuthService) AuthToken(ctx context.Context) (string, bool) {
	token, ok, err := s.store.Get(ctx, store.KeyAuthToken)
	if err != nil {
		return "", false
	}
	return token, ok
}

// ValidateToken parses and verifies a token minted by Login.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *AuthService) mintToken(session *domain.Session) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   session.ID,
		"email": session.Email,
		"name":  session.Name,
		"role":  session.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// loadAccounts reads the persisted account collection. A malformed entry is
// treated as empty and cleared; only a failing store surfaces an error.
func (s *AuthService) loadAccounts(ctx context.Context) ([]domain.RegisteredAccount, error) {
	data, ok, err := s.store.Get(ctx, store.KeyRegisteredUsers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		return nil, nil
	}

	var accounts []domain.RegisteredAccount
	if err := json.Unmarshal([]byte(data), &accounts); err != nil {
		s.logger.Warnf("registered accounts entry is corrupt, clearing: %v", err)
		_ = s.store.Delete(ctx, store.KeyRegisteredUsers)
		return nil, nil
	}
	return accounts, nil
}

func (s *AuthService) saveAccounts(ctx context.Context, accounts []domain.RegisteredAccount) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyRegisteredUsers, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *AuthService) simulateLatency(ctx context.Context) {
	if s.latency <= 0 {
		return
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func findAccount(accounts []domain.RegisteredAccount, email string) int {
	needle := normalizeEmail(email)
	for i := range accounts {
		if normalizeEmail(accounts[i].Email) == needle {
			return i
		}
	}
	return -1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
