package storage

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v7"

	"vmeste.me/model"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

type Storage interface {
	CreateUser(u *model.User) error
	GetUserByID(id string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	IncrVisits() (int64, error)
	GetVisitsByDate(date time.Time) (int64, error)
	// IncrRateLimit bumps the fixed-window counter behind key and returns
	// the number of hits in the current window
	IncrRateLimit(key string, window time.Duration) (int64, error)
}

type storage struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) Storage {
	return &storage{rdb: rdb}
}

func (s *storage) CreateUser(u *model.User) error {
	ok, err := s.rdb.SetNX("user:email:"+u.Email, u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserExists
	}

	ok, err = s.rdb.SetNX("user:name:"+u.Username, u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		_ = s.rdb.Del("user:email:" + u.Email).Err()
		return ErrUserExists
	}

	data := map[string]interface{}{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"created_at":    u.CreatedAt.Unix(),
	}
	return s.rdb.HSet("user:"+u.ID, data).Err()
}

func (s *storage) GetUserByID(id string) (*model.User, error) {
	data := s.rdb.HGetAll("user:" + id).Val()
	if len(data) == 0 {
		return nil, ErrUserNotFound
	}

	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt user record '%s': %w", id, err)
	}

	return &model.User{
		ID:           data["id"],
		Username:     data["username"],
		Email:        data["email"],
		PasswordHash: data["password_hash"],
		CreatedAt:    time.Unix(createdAt, 0),
	}, nil
}

func (s *storage) GetUserByEmail(email string) (*model.User, error) {
	return s.getByIndex("user:email:" + email)
}

func (s *storage) GetUserByUsername(username string) (*model.User, error) {
	return s.getByIndex("user:name:" + username)
}

func (s *storage) getByIndex(key string) (*model.User, error) {
	id, err := s.rdb.Get(key).Result()
	if err == redis.Nil {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(id)
}

func (s *storage) IncrVisits() (int64, error) {
	return s.rdb.Incr("visits:" + time.Now().Format("02.01.06")).Result()
}

func (s *storage) GetVisitsByDate(date time.Time) (int64, error) {
	return s.rdb.Get("visits:" + date.Format("02.01.06")).Int64()
}

func (s *storage) IncrRateLimit(key string, window time.Duration) (int64, error) {
	bucket := time.Now().Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)
	hits, err := s.rdb.Incr(redisKey).Result()
	if err != nil {
		return 0, err
	}
	if hits == 1 {
		_ = s.rdb.Expire(redisKey, window).Err()
	}
	return hits, nil
}
