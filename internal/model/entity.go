package model

import "time"

type TicketStatus string

const (
	// TicketStatusPending — строка записана до отправки зеркального сообщения.
	TicketStatusPending TicketStatus = "pending"
	TicketStatusOpen    TicketStatus = "open"
	// TicketStatusClosed никогда не хранится: закрытый тикет удаляется.
	TicketStatusClosed TicketStatus = "closed"
)

// Destination — зарегистрированная комната поддержки (таблица support_targets).
type Destination struct {
	ID          uint64 `gorm:"primaryKey" json:"id"`
	RoomID      string `gorm:"type:varchar(255);not null;uniqueIndex:ux_support_targets_room_name,priority:1" json:"room_id"`
	DisplayName string `gorm:"type:varchar(255);not null;uniqueIndex:ux_support_targets_room_name,priority:2" json:"display_name"`
	Locked      bool   `gorm:"not null;default:false" json:"locked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Destination) TableName() string { return "support_targets" }

// Code is the short number requesters type to pick this destination.
func (d *Destination) Code() uint64 { return d.ID }

// VisibleDestination is one line of the selection prompt.
type VisibleDestination struct {
	Code        uint64 `json:"code"`
	DisplayName string `json:"display_name"`
	RoomID      string `json:"room_id"`
}

type Ticket struct {
	ID              uint64       `gorm:"primaryKey" json:"id"`
	OriginalRoom    string       `gorm:"type:varchar(255);not null" json:"original_room"`
	OriginalMessage string       `gorm:"type:varchar(255);not null" json:"original_message"`
	MirroredRoom    string       `gorm:"type:varchar(255);not null" json:"mirrored_room"`
	MirroredMessage string       `gorm:"type:varchar(255);not null;default:''" json:"mirrored_message"`
	Creator         string       `gorm:"type:varchar(255);not null" json:"creator"`
	Status          TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Ticket) TableName() string { return "tickets" }

// PendingSelection живёт только в памяти: запрос ждёт, пока автор выберет код комнаты.
type PendingSelection struct {
	OriginalMessage string
	OriginalRoom    string
	// Content — HTML-тело запроса, Body — текстовый fallback.
	Content   string
	Body      string
	Creator   string
	CreatedAt time.Time
}
