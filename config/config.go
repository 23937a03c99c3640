package config

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/gommon/log"
)

type Config struct {
	HttpPort       int           `envconfig:"HTTP_PORT" required:"true"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" required:"true"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD" required:"true"`
	RedisDB        int           `envconfig:"REDIS_DB" required:"false" default:"0"`
	MaxWorkers     int           `envconfig:"MAX_WORKERS" required:"false" default:"64"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL         time.Duration `envconfig:"JWT_TTL" required:"false" default:"24h"`
	PingInterval   time.Duration `envconfig:"PING_INTERVAL" required:"false" default:"30s"`
	RoomCap        int           `envconfig:"ROOM_CAP" required:"false" default:"0"`
	AuthRateLimit  int           `envconfig:"AUTH_RATE_LIMIT" required:"false" default:"10"`
	AuthRateWindow time.Duration `envconfig:"AUTH_RATE_WINDOW" required:"false" default:"1m"`
}

var (
	c    Config
	once sync.Once
)

func Get() *Config {
	once.Do(func() {
		err := envconfig.Process("", &c)
		if err != nil {
			log.Fatal(err)
		}
	})
	return &c
}
