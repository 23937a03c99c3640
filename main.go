package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/labstack/gommon/log"

	"vmeste.me/api"
	"vmeste.me/auth"
	"vmeste.me/config"
	"vmeste.me/pkg/msgbroker"
	"vmeste.me/storage"
)

func main() {
	// APP configuration
	c := config.Get()

	// Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	err := rdb.Ping().Err()
	if err != nil {
		log.Fatal(err)
	}

	// Storage, message broker, identity resolver
	s := storage.New(rdb)
	mb := msgbroker.NewRedisBroker(rdb)
	a := auth.New(s, c.JWTSecret, c.JWTTTL)

	// API
	srv := api.New(c, s, a, mb)

	go func() {
		if err := srv.Start(); err != nil {
			log.Warn(err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	quit := <-signals
	log.Infof("signal %s received, stopping server...", quit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	if err = srv.Close(ctx); err != nil {
		log.Error(err)
	}
	cancel()

	if err = mb.Close(); err != nil {
		log.Error(err)
	}
	if err = rdb.Close(); err != nil {
		log.Error(err)
	}
}
