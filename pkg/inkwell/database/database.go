package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var DB *gorm.DB

// Open returns a gorm handle for the given driver and DSN.
// Unique-constraint violations are translated to gorm.ErrDuplicatedKey.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(SQLiteDSN(dsn))
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

// SQLiteDSN makes transactions take the write lock at BEGIN and wait for it
// instead of failing with "database is locked". Options already present in
// dsn are kept.
func SQLiteDSN(dsn string) string {
	var opts []string
	if !strings.Contains(dsn, "_txlock=") {
		opts = append(opts, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "_busy_timeout=") {
		opts = append(opts, "_busy_timeout=5000")
	}
	if len(opts) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(opts, "&")
}

// Connect initializes the package-level database connection.
func Connect(driver, dsn string) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping %s: %w", driver, err)
	}

	DB = db
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}

// Close closes the underlying connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
