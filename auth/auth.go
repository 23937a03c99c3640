// Package auth is the identity collaborator around the sync core: account
// registration, credential checks and bearer-token resolution. The core
// itself never looks in here; it only sees the opaque identity the gateway
// attaches to a connection.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vmeste.me/model"
	"vmeste.me/pkg/utils"
	"vmeste.me/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email/username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = storage.ErrUserExists
)

type Service struct {
	storage storage.Storage
	secret  []byte
	ttl     time.Duration
}

func New(s storage.Storage, secret string, ttl time.Duration) *Service {
	return &Service{storage: s, secret: []byte(secret), ttl: ttl}
}

// Register creates an account with a bcrypt-hashed password and returns it
// together with a fresh access token.
func (s *Service) Register(username, email, password string) (*model.User, string, error) {
	if !utils.IsNameValid(username) {
		return nil, "", errors.New("invalid username")
	}
	if !utils.IsEmailValid(email) {
		return nil, "", errors.New("invalid email")
	}
	if !utils.IsLengthValid(password, 6, 100) {
		return nil, "", errors.New("password must be between 6 and 100 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now(),
	}
	if err = s.storage.CreateUser(u); err != nil {
		return nil, "", err
	}

	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login checks credentials against the user store. login may be an email
// or a username.
func (s *Service) Login(login, password string) (*model.User, string, error) {
	u, err := s.storage.GetUserByEmail(login)
	if errors.Is(err, storage.ErrUserNotFound) {
		u, err = s.storage.GetUserByUsername(login)
	}
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Resolve yields the identity behind a bearer credential, or fails.
func (s *Service) Resolve(token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	uid, ok := claims["uid"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	u, err := s.storage.GetUserByID(uid)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}, nil
}

func (s *Service) token(u *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"uid":   u.ID,
		"uname": u.Username,
		"email": u.Email,
		"jti":   utils.RandString(16),
		"exp":   now.Add(s.ttl).Unix(),
		"iat":   now.Unix(),
		"iss":   "vmeste.me",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
