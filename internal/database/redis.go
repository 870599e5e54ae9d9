package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

const redisPingTimeout = 3 * time.Second

type redisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func loadRedisConfig() redisConfig {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	return redisConfig{
		Host:     viper.GetString("redis.host"),
		Port:     viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}
}

// InitRedis dials Redis from viper config. Redis backs the audit log queue
// and the logout token blacklist, both of which degrade gracefully, so an
// unreachable server yields nil instead of aborting startup.
func InitRedis() *redis.Client {
	cfg := loadRedisConfig()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable, audit queue and token blacklist disabled: %v", err)
		return nil
	}

	log.Println("Redis connection established")
	return client
}
