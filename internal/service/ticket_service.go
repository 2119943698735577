package service

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/model"
	"gorm.io/gorm"
)

// TicketServicer — интерфейс хранилища тикетов (Dependency Inversion для роутера и HTTP).
type TicketServicer interface {
	Create(ctx context.Context, originalMessage, originalRoom, mirrorMessage, mirrorRoom, creator string) (*model.Ticket, error)
	CreatePending(ctx context.Context, t *model.Ticket) error
	Confirm(ctx context.Context, id uint64, mirrorMessage string) error
	FindByOriginal(ctx context.Context, originalMessage, originalRoom string) (*model.Ticket, error)
	FindByMirror(ctx context.Context, mirrorMessage, mirrorRoom string) (*model.Ticket, error)
	DeleteByID(ctx context.Context, id uint64) error
	LoadAll(ctx context.Context) ([]model.Ticket, error)
	ListPending(ctx context.Context, before time.Time) ([]model.Ticket, error)
}

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// Create inserts an already delivered ticket. Duplicates are the caller's problem.
func (s *TicketService) Create(ctx context.Context, originalMessage, originalRoom, mirrorMessage, mirrorRoom, creator string) (*model.Ticket, error) {
	t := &model.Ticket{
		OriginalMessage: originalMessage,
		OriginalRoom:    originalRoom,
		MirroredMessage: mirrorMessage,
		MirroredRoom:    mirrorRoom,
		Creator:         creator,
		Status:          model.TicketStatusOpen,
	}
	if err := s.create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreatePending пишет тикет до отправки зеркального сообщения (status=pending, mirrored_message пуст).
func (s *TicketService) CreatePending(ctx context.Context, t *model.Ticket) error {
	t.Status = model.TicketStatusPending
	t.MirroredMessage = ""
	return s.create(ctx, t)
}

func (s *TicketService) create(ctx context.Context, t *model.Ticket) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrTicketExists
		}
		return err
	}
	return nil
}

// Confirm переводит pending-тикет в open после успешной отправки.
func (s *TicketService) Confirm(ctx context.Context, id uint64, mirrorMessage string) error {
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND status = ?", id, model.TicketStatusPending).
		Updates(map[string]interface{}{
			"mirrored_message": mirrorMessage,
			"status":           model.TicketStatusOpen,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrTicketNotFound
	}
	return nil
}

func (s *TicketService) FindByOriginal(ctx context.Context, originalMessage, originalRoom string) (*model.Ticket, error) {
	return s.findOpen(ctx, "original_message = ? AND original_room = ?", originalMessage, originalRoom)
}

func (s *TicketService) FindByMirror(ctx context.Context, mirrorMessage, mirrorRoom string) (*model.Ticket, error) {
	return s.findOpen(ctx, "mirrored_message = ? AND mirrored_room = ?", mirrorMessage, mirrorRoom)
}

func (s *TicketService) findOpen(ctx context.Context, query string, args ...interface{}) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Where(query, args...).
		Where("status = ?", model.TicketStatusOpen).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *TicketService) DeleteByID(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&model.Ticket{}, id).Error
}

// LoadAll returns every open ticket; used once at startup to rebuild the mirror index.
func (s *TicketService) LoadAll(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	if err := s.db.WithContext(ctx).Where("status = ?", model.TicketStatusOpen).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListPending — тикеты, застрявшие между записью и отправкой (для сверки при старте).
func (s *TicketService) ListPending(ctx context.Context, before time.Time) ([]model.Ticket, error) {
	var items []model.Ticket
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", model.TicketStatusPending, before).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
