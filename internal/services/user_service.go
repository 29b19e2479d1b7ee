package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

const minPasswordLen = 6

var errNoSigningKey = errors.New("token signing key not configured")

// UserService handles accounts, credential checks and tokens.
type UserService struct {
	db       core.UserStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewUserService(db core.UserStore, jwtSecret string) *UserService {
	return &UserService{db: db, secret: []byte(jwtSecret), tokenTTL: 24 * time.Hour, now: time.Now}
}

// Signup registers a self-service account. Such accounts always get the
// User role.
func (s *UserService) Signup(ctx context.Context, firstName, email, password string) (*models.User, error) {
	return s.Create(ctx, firstName, email, password, models.RoleUser)
}

// Create registers an account with an explicit role. Only operator tooling
// calls this with anything other than RoleUser.
func (s *UserService) Create(ctx context.Context, firstName, email, password string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q", core.ErrInvalidInput, email)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", core.ErrInvalidInput, minPasswordLen)
	}
	if _, ok := models.ParseRole(string(role)); !ok {
		return nil, fmt.Errorf("%w: role %q", core.ErrInvalidInput, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(firstName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyCredentials returns the caller's identity, or ErrAuth for an
// unknown email or wrong password.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	user, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrAuth
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, core.ErrAuth
	}
	return identityOf(user), nil
}

// SetRole changes the role of the account registered under email.
func (s *UserService) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if _, ok := models.ParseRole(string(role)); !ok {
		return nil, fmt.Errorf("%w: role %q", core.ErrInvalidInput, role)
	}
	user, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateUserRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

type claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token carrying the identity.
func (s *UserService) IssueToken(id models.Identity) (string, error) {
	if len(s.secret) == 0 {
		return "", errNoSigningKey
	}
	now := s.now()
	c := claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// ParseToken validates a token and returns the identity it carries.
func (s *UserService) ParseToken(token string) (*models.Identity, error) {
	if len(s.secret) == 0 {
		return nil, core.ErrAuth
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, core.ErrAuth
	}
	if c.UserID == "" {
		return nil, core.ErrAuth
	}
	role, ok := models.ParseRole(c.Role)
	if !ok {
		return nil, core.ErrAuth
	}
	return &models.Identity{UserID: c.UserID, Email: c.Email, Role: role}, nil
}

func identityOf(u *models.User) *models.Identity {
	role, _ := models.ParseRole(string(u.Role))
	return &models.Identity{UserID: u.ID, Email: u.Email, Role: role}
}
