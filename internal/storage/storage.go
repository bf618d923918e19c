package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrStateConflict means a conditional publication update matched no row
	// because the item was not in the expected state.
	ErrStateConflict = errors.New("storage: publication state conflict")
)

const sqlitePrefix = "sqlite:"

type Store struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *slog.Logger
}

// Open connects to Postgres, or to an embedded SQLite file when dsn starts
// with "sqlite:". An empty redisAddr disables the read cache.
func Open(dsn, redisAddr string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", "addr", redisAddr, "err", err)
		}
	}

	return New(db, rdb, logger)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, rdb *redis.Client, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Source{}, &News{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{DB: db, Redis: rdb, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// toValidUTF8 keeps Postgres from rejecting scraped text with broken encodings.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB caps a value at its column width.
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
