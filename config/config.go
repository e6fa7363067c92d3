package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Load pulls the .env file into the environment. Missing files are fine in
// deployed environments where variables come from the orchestrator.
func Load() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}
}

// InitDB opens the MySQL connection gorm uses as the durable store.
func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		envOr("DB_USER", "root"),
		os.Getenv("DB_PASSWORD"),
		envOr("DB_HOST", "127.0.0.1"),
		envOr("DB_PORT", "3306"),
		envOr("DB_NAME", "messenger"),
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// ListenAddr is the HTTP bind address, ":8082" unless PORT overrides it.
func ListenAddr() string {
	return ":" + envOr("PORT", "8082")
}

// HeartbeatInterval reads SSE_HEARTBEAT (a Go duration, e.g. "20s"); zero
// means the hub default.
func HeartbeatInterval() time.Duration {
	raw := os.Getenv("SSE_HEARTBEAT")
	if raw == "" {
		return 0
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithError(err).WithField("value", raw).Warn("invalid SSE_HEARTBEAT, using default")
		return 0
	}
	return interval
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
