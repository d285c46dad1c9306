package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/store/gormstore"
	"github.com/cppla/eduboard/store/memstore"
	"github.com/cppla/eduboard/store/mongostore"
)

// InitStore opens the document store selected by database.driver.
func InitStore(zl *zap.Logger) store.Store {
	cfg := Get()
	switch cfg.DBDriver {
	case "memory":
		zl.Warn("using in-memory store; data is lost on restart")
		return memstore.New()
	case "mysql":
		s := gormstore.New(openMySQL(cfg, zl))
		if err := s.Migrate(); err != nil {
			zl.Fatal("auto migration failed", zap.Error(err))
		}
		return s
	default:
		s, err := mongostore.New(cfg.MongoURI, cfg.MongoDatabase, zl)
		if err != nil {
			zl.Fatal("failed to connect mongodb", zap.Error(err))
		}
		return s
	}
}

// gormWriter sends gorm's statement log to the application logger.
type gormWriter struct{ s *zap.SugaredLogger }

func (w gormWriter) Printf(format string, args ...interface{}) { w.s.Infof(format, args...) }

func openMySQL(cfg AppConfig, zl *zap.Logger) *gorm.DB {
	dsn := cfg.DatabaseURI
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
	}

	// derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		gormWriter{s: zl.Named("gorm").Sugar()},
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		zl.Fatal("failed to connect database", zap.String("host", cfg.DBHost), zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zl.Fatal("failed to get sql.DB", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	// recycle idle connections before the server's wait_timeout does
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		zl.Fatal("database ping failed", zap.Error(err))
	}
	return db
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// shows every statement
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
