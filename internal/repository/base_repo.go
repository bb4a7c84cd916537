package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/entity"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories holds all repositories
type Repositories struct {
	DB           *gorm.DB
	Redis        *redis.Client
	User         *UserRepo
	Message      *MessageRepo
	Conversation *ConversationRepo
	Seq          *SeqRepo
	Notification *NotificationRepo
	Presence     *PresenceRepo
}

// NewRepositories creates all repositories
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, err
	}

	rdb := initRedis(cfg)

	repos := NewRepositoriesWithClients(db, rdb)
	if cfg.Database.AutoMigrate {
		if err := repos.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	return repos, nil
}

// NewRepositoriesWithClients wires repositories on top of already opened clients
func NewRepositoriesWithClients(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		DB:           db,
		Redis:        rdb,
		User:         NewUserRepo(db, rdb),
		Message:      NewMessageRepo(db, rdb),
		Conversation: NewConversationRepo(db, rdb),
		Seq:          NewSeqRepo(db, rdb),
		Notification: NewNotificationRepo(db, rdb),
		Presence:     NewPresenceRepo(rdb),
	}
}

// initDB opens the conversation store using the configured driver
func initDB(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.Database.SQLitePath, logLevel)
	default:
		return initMySQL(cfg, logLevel)
	}
}

// initMySQL initializes MySQL connection
func initMySQL(cfg *config.Config, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenSQLite opens a SQLite database at path. Paths starting with "file:" are
// passed through untouched so in-memory DSNs work.
func OpenSQLite(path string, logLevel logger.LogLevel) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite database object: %w", err)
	}

	// SQLite allows a single writer, see https://github.com/glebarez/sqlite/issues/52
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// AutoMigrate creates or updates the store schema
func (r *Repositories) AutoMigrate() error {
	err := r.DB.AutoMigrate(
		&entity.User{},
		&entity.Conversation{},
		&entity.ConversationParticipant{},
		&entity.Message{},
		&entity.SeqConversation{},
		&entity.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// Close closes all connections
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return r.Redis.Close()
}

// Transaction executes fn in a transaction
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}

// TransactionWithOptions executes fn in a transaction with options
func (r *Repositories) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn, opts)
}

// CheckConnection checks if database and redis connections are alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.CtxError(ctx, "database ping failed: %v", err)
		return err
	}

	if err := r.Redis.Ping(ctx).Err(); err != nil {
		log.CtxError(ctx, "redis ping failed: %v", err)
		return err
	}

	return nil
}
