package db

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errDBUnavailable = errors.New("db unavailable")

type Store struct {
	DB       *gorm.DB
	Requests *RequestRepository
}

// NewStore opens postgres and migrates the request table. An empty DSN yields a
// store without a database; its repositories report errDBUnavailable.
func NewStore(dsn string, log logrus.FieldLogger) (*Store, error) {
	if dsn == "" {
		log.Info("POSTGRES_DSN not set; request history will not be stored in postgres")
		return &Store{Requests: NewRequestRepository(nil)}, nil
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&RequestRecordModel{}); err != nil {
		return nil, fmt.Errorf("migrate request records: %w", err)
	}
	return &Store{DB: gdb, Requests: NewRequestRepository(gdb)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
