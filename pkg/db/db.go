package db

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
)

var (
	sharedConnection *gorm.DB
	once             sync.Once
)

// GetSharedConnection returns the process-wide database connection, opening
// it on first use from the global configuration.
func GetSharedConnection() *gorm.DB {
	once.Do(func() {
		sharedConnection = newConnection(&config.Config.Database)
	})
	return sharedConnection
}

func newConnection(databaseConfig *config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
		databaseConfig.Host,
		databaseConfig.Username,
		databaseConfig.Password,
		databaseConfig.Name,
		databaseConfig.Port,
		databaseConfig.TimeZone,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		QueryFields: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic("connecting to the database: " + err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic("accessing the database pool: " + err.Error())
	}
	sqlDB.SetMaxIdleConns(databaseConfig.Pool.IdleConnections)
	sqlDB.SetMaxOpenConns(databaseConfig.Pool.MaxConnections)
	if databaseConfig.Pool.ConnLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(databaseConfig.Pool.ConnLifeTime)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}
