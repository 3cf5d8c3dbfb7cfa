package postgres

import (
	"strings"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the database named by databaseURL and migrates it.
// sqlite:// and file: URLs open an embedded SQLite database, anything else
// is handed to the PostgreSQL driver.
func NewConnection(databaseURL string) (*gorm.DB, error) {
	return Open(databaseURL, logger.Default.LogMode(logger.Info))
}

func Open(databaseURL string, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(databaseURL), &gorm.Config{
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.UserSession{},
		&domain.Event{},
		&domain.EventPlayer{},
		&domain.ScheduledMatch{},
	)
}

func dialector(databaseURL string) gorm.Dialector {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return sqlite.Open(databaseURL)
	default:
		return postgres.Open(databaseURL)
	}
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:           NewUserRepository(db),
		Session:        NewSessionRepository(db),
		Event:          NewEventRepository(db),
		EventPlayer:    NewEventPlayerRepository(db),
		ScheduledMatch: NewScheduledMatchRepository(db),
	}
}
