package db

import (
	"context"
	"fmt"

	"marketplace/config"
	"marketplace/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

func dsnFromConfig(driver string, dbConf config.DBConfig) string {
	if driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConf.User, dbConf.Password, dbConf.Host, dbConf.Port, dbConf.DBName)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

func dialector(driver string, dsn string) gorm.Dialector {
	switch driver {
	case "mysql":
		return mysql.Open(dsn)
	case "sqlite":
		return sqlite.Open(dsn)
	default:
		return postgres.Open(dsn)
	}
}

// ConnectDB opens the master database, registers read replicas and runs
// migrations.
func ConnectDB(conf *config.ConfigSchema) (*gorm.DB, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is not loaded")
	}
	driver := conf.Databases.Driver

	if driver == "sqlite" {
		return OpenSQLite(conf.Databases.Path)
	}

	orm, err := gorm.Open(dialector(driver, dsnFromConfig(driver, conf.Databases.Master)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	replicas := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
	for _, r := range conf.Databases.Replicas {
		replicas = append(replicas, dialector(driver, dsnFromConfig(driver, r)))
	}
	if len(replicas) > 0 {
		err = orm.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("register replicas: %w", err)
		}
		zap.L().Info("read replicas registered", zap.Int("count", len(replicas)))
	}

	if err := Migrate(orm); err != nil {
		return nil, err
	}
	return orm, nil
}

// OpenSQLite opens (and migrates) a sqlite database. ":memory:" gives a
// private in-memory database pinned to a single connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path + "?_foreign_keys=on"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	orm, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(orm); err != nil {
		return nil, err
	}
	return orm, nil
}

// Migrate creates or updates every table of the marketplace.
func Migrate(orm *gorm.DB) error {
	err := orm.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Order{},
		&models.Image{},
		&models.Comment{},
		&models.Chat{},
		&models.Message{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if orm.Dialector.Name() == "postgres" {
		if err := CreateMessageTypeCheck(orm); err != nil {
			return err
		}
	}
	return nil
}

// GetReadOnlyDB returns a session routed to the replicas, if any. The
// session is safe to start several queries from.
func GetReadOnlyDB(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Read).Session(&gorm.Session{})
}

// GetWriteDB returns a session routed to the master.
func GetWriteDB(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Write).Session(&gorm.Session{})
}

func Close(orm *gorm.DB) error {
	sqlDB, err := orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
