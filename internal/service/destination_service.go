package service

import (
	"context"
	"errors"
	"sort"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DestinationServicer — реестр комнат поддержки (для роутера, команд и HTTP).
type DestinationServicer interface {
	Register(ctx context.Context, roomID, displayName string) (bool, error)
	FindByCode(ctx context.Context, code uint64) (*model.Destination, error)
	FindByRoom(ctx context.Context, roomID string) (*model.Destination, error)
	Lock(ctx context.Context, roomID string) error
	Unlock(ctx context.Context, roomID string) error
	IsLocked(ctx context.Context, roomID string) (bool, error)
	Delete(ctx context.Context, roomID string) error
	ListVisible(ctx context.Context) ([]model.VisibleDestination, error)
}

type DestinationService struct {
	db *gorm.DB
}

func NewDestinationService(db *gorm.DB) *DestinationService {
	return &DestinationService{db: db}
}

// Register вставляет строку, если пары (room_id, display_name) ещё нет.
// Уникальность держит ограничение в схеме, поэтому конкурирующие вызовы не создают дубликатов.
func (s *DestinationService) Register(ctx context.Context, roomID, displayName string) (bool, error) {
	d := &model.Destination{RoomID: roomID, DisplayName: displayName}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(d)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DestinationService) FindByCode(ctx context.Context, code uint64) (*model.Destination, error) {
	var d model.Destination
	if err := s.db.WithContext(ctx).First(&d, code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrDestinationNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *DestinationService) FindByRoom(ctx context.Context, roomID string) (*model.Destination, error) {
	var d model.Destination
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrDestinationNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *DestinationService) Lock(ctx context.Context, roomID string) error {
	return s.setLocked(ctx, roomID, true)
}

func (s *DestinationService) Unlock(ctx context.Context, roomID string) error {
	return s.setLocked(ctx, roomID, false)
}

func (s *DestinationService) setLocked(ctx context.Context, roomID string, locked bool) error {
	return s.db.WithContext(ctx).Model(&model.Destination{}).
		Where("room_id = ?", roomID).
		Update("locked", locked).Error
}

// IsLocked returns true for rooms that are not registered: an unknown room is never selectable.
func (s *DestinationService) IsLocked(ctx context.Context, roomID string) (bool, error) {
	d, err := s.FindByRoom(ctx, roomID)
	if errors.Is(err, errs.ErrDestinationNotFound) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return d.Locked, nil
}

func (s *DestinationService) Delete(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&model.Destination{}).Error
}

// ListVisible отдаёт открытые комнаты, отсортированные по имени (побайтово, с учётом регистра).
// Сортируем в Go: порядок ORDER BY зависит от collation базы.
func (s *DestinationService) ListVisible(ctx context.Context) ([]model.VisibleDestination, error) {
	var rows []model.Destination
	if err := s.db.WithContext(ctx).Where("locked = ?", false).Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DisplayName != rows[j].DisplayName {
			return rows[i].DisplayName < rows[j].DisplayName
		}
		return rows[i].ID < rows[j].ID
	})
	out := make([]model.VisibleDestination, len(rows))
	for i, d := range rows {
		out[i] = model.VisibleDestination{Code: d.Code(), DisplayName: d.DisplayName, RoomID: d.RoomID}
	}
	return out, nil
}
