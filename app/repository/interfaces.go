package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/ownership"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, *models.UserSettings, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

// UserSettingsRepository stores API credentials and preferences.
type UserSettingsRepository interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.UserSettings, error)
	Save(ctx context.Context, settings *models.UserSettings) error
	TouchAPIKey(ctx context.Context, settingsID uint, at time.Time) error
}

// ListOptions pages a list query. Limit is clamped to MaxListLimit.
type ListOptions struct {
	Offset int
	Limit  int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// OwnedRepository is the persistence boundary for one owned record type.
// GetByID is not owner-scoped; callers authorize the loaded record.
type OwnedRepository[T any] interface {
	Create(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uint) (*T, error)
	List(ctx context.Context, filter ownership.Filter, opts ListOptions) ([]T, int64, error)
	Update(ctx context.Context, record *T) error
	Delete(ctx context.Context, id uint) error
}

// TemporalRow is the projection the reconciler reads: dates, stored status
// and the row version (UpdatedAt) it was read at.
type TemporalRow struct {
	ID           uint
	StartDate    *time.Time
	DueDate      *time.Time
	ReminderSet  bool
	ReminderDate *time.Time
	Status       string
	UpdatedAt    time.Time
}

// TemporalRepository exposes the date projection of one record type.
type TemporalRepository interface {
	Kind() string
	ListTemporal(ctx context.Context) ([]TemporalRow, error)
	// UpdateStatus writes status only if the row is unchanged since it was
	// projected; false means the row moved on (or is gone) and nothing was written.
	UpdateStatus(ctx context.Context, row TemporalRow, status string) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User           UserRepository
	Settings       UserSettingsRepository
	RenewalItem    OwnedRepository[models.RenewalItem]
	TrainingRecord OwnedRepository[models.TrainingRecord]
	Audit          OwnedRepository[models.Audit]
	SpotCheck      OwnedRepository[models.SpotCheck]
	Temporal       []TemporalRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:           NewUserRepository(db),
		Settings:       NewUserSettingsRepository(db),
		RenewalItem:    NewOwnedRepository[models.RenewalItem](db),
		TrainingRecord: NewOwnedRepository[models.TrainingRecord](db),
		Audit:          NewOwnedRepository[models.Audit](db),
		SpotCheck:      NewOwnedRepository[models.SpotCheck](db),
		Temporal: []TemporalRepository{
			NewTemporalRepository[models.RenewalItem](db, "renewal_item"),
			NewTemporalRepository[models.TrainingRecord](db, "training_record"),
		},
	}
}
