package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/internal/core/ports"
)

const DefaultTokenTTL = 30 * time.Minute

// AuthService registers users, verifies credentials and issues/validates
// self-contained signed session tokens. Validation is a pure cryptographic
// check; there is no server-side revocation list, logout is client-side
// token discard.
type AuthService struct {
	users    ports.UserRepository
	secret   []byte
	tokenTTL time.Duration
	hashCost int
}

func NewAuthService(users ports.UserRepository, secret []byte, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{users: users, secret: secret, tokenTTL: tokenTTL, hashCost: bcrypt.DefaultCost}
}

func (s *AuthService) Register(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	if err := draft.Validate(); err != nil {
		return domain.User{}, err
	}

	role := draft.Role
	if role == "" {
		role = domain.RoleViewer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(draft.Password), s.hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	return s.users.Create(ctx, domain.User{
		Email:        strings.ToLower(strings.TrimSpace(draft.Email)),
		Username:     strings.TrimSpace(draft.Username),
		PasswordHash: string(hash),
		FullName:     draft.FullName,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Login verifies the password against the stored bcrypt hash and returns a
// signed token. The identifier is matched against email or username.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", domain.ErrInvalidCredentials
	}
	if !user.Active {
		return "", domain.ErrInactiveUser
	}

	return s.issueToken(user)
}

// Me resolves the current user row for a validated session.
func (s *AuthService) Me(ctx context.Context, session domain.Session) (domain.User, error) {
	return s.users.FindByID(ctx, session.UserID)
}

type sessionClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) issueToken(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the token signature and expiry and returns the session it
// carries. No database round-trip is involved.
func (s *AuthService) Validate(token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, domain.ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Session{}, domain.ErrTokenExpired
		}
		return domain.Session{}, domain.ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return domain.Session{}, domain.ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Session{}, domain.ErrTokenInvalid
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Session{}, domain.ErrTokenInvalid
	}

	session := domain.Session{
		UserID:   userID,
		Email:    claims.Email,
		Username: claims.Username,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
