package delegation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
)

// LinkChange describes the cross-roster claim that must be written together
// with a roster update. Zero fields mean no change.
type LinkChange struct {
	Claim   uint
	Release uint
}

// Store persists rosters. Save is a compare-and-swap: it succeeds only when
// the stored version still equals expectedVersion (or, for a roster without
// an ID, when no roster exists yet for the manager) and otherwise returns
// ErrConcurrentUpdate without writing anything.
type Store interface {
	Load(ctx context.Context, managerID uint) (*models.DelegationRoster, error)
	Save(ctx context.Context, roster *models.DelegationRoster, expectedVersion uint, link LinkChange) error
	ManagerOf(ctx context.Context, clientID uint) (uint, bool, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the delegation_rosters and delegation_links tables.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Load(ctx context.Context, managerID uint) (*models.DelegationRoster, error) {
	var roster models.DelegationRoster
	err := s.db.WithContext(ctx).Where("manager_id = ?", managerID).First(&roster).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &roster, nil
}

func (s *gormStore) Save(ctx context.Context, roster *models.DelegationRoster, expectedVersion uint, link LinkChange) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if roster.ID == 0 {
			roster.Version = expectedVersion + 1
			if err := tx.Create(roster).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrConcurrentUpdate
				}
				// Drivers without error translation: re-check whether another writer won.
				var n int64
				if cerr := tx.Model(&models.DelegationRoster{}).Where("manager_id = ?", roster.ManagerID).Count(&n).Error; cerr == nil && n > 0 {
					return ErrConcurrentUpdate
				}
				return err
			}
		} else {
			res := tx.Model(&models.DelegationRoster{}).
				Where("id = ? AND version = ?", roster.ID, expectedVersion).
				Updates(map[string]interface{}{
					"capacity": roster.Capacity,
					"entries":  roster.Entries,
					"version":  expectedVersion + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}
			roster.Version = expectedVersion + 1
		}

		if link.Release != 0 {
			if err := tx.Where("client_id = ? AND manager_id = ?", link.Release, roster.ManagerID).
				Delete(&models.DelegationLink{}).Error; err != nil {
				return err
			}
		}
		if link.Claim != 0 {
			var existing models.DelegationLink
			err := tx.Where("client_id = ?", link.Claim).First(&existing).Error
			switch {
			case err == nil:
				if existing.ManagerID != roster.ManagerID {
					return ErrAlreadyDelegated
				}
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			if err := tx.Create(&models.DelegationLink{ClientID: link.Claim, ManagerID: roster.ManagerID}).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyDelegated
				}
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) ManagerOf(ctx context.Context, clientID uint) (uint, bool, error) {
	var l models.DelegationLink
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return l.ManagerID, true, nil
}
