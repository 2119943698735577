package relay

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/psds-microservice/support-relay/internal/model"
)

// RequesterState — состояние комнаты автора запроса.
type RequesterState int

const (
	StateIdle RequesterState = iota
	StateAwaitingDestination
)

func (s RequesterState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDestination:
		return "awaiting_destination"
	default:
		return "unknown"
	}
}

// pendingSelections держит не более limit ожидающих выборов; запись живёт ttl.
type pendingSelections struct {
	lru *expirable.LRU[string, model.PendingSelection]
}

func newPendingSelections(limit int, ttl time.Duration) *pendingSelections {
	return &pendingSelections{lru: expirable.NewLRU[string, model.PendingSelection](limit, nil, ttl)}
}

func (p *pendingSelections) state(roomID string) (RequesterState, model.PendingSelection) {
	sel, ok := p.lru.Peek(roomID)
	if !ok {
		return StateIdle, model.PendingSelection{}
	}
	return StateAwaitingDestination, sel
}

func (p *pendingSelections) put(sel model.PendingSelection) {
	p.lru.Add(sel.OriginalRoom, sel)
}

func (p *pendingSelections) clear(roomID string) {
	p.lru.Remove(roomID)
}

func (p *pendingSelections) len() int {
	return p.lru.Len()
}

type mirrorKey struct {
	Room    string
	Message string
}

// mirrorIndex — кэш открытых тикетов по (комната назначения, зеркальное сообщение).
type mirrorIndex map[mirrorKey]model.Ticket

func (m mirrorIndex) lookup(room, message string) (model.Ticket, bool) {
	t, ok := m[mirrorKey{Room: room, Message: message}]
	return t, ok
}

func (m mirrorIndex) put(t model.Ticket) {
	m[mirrorKey{Room: t.MirroredRoom, Message: t.MirroredMessage}] = t
}

func (m mirrorIndex) remove(t model.Ticket) {
	delete(m, mirrorKey{Room: t.MirroredRoom, Message: t.MirroredMessage})
}

// seenEvents — ограниченное множество уже обработанных id событий.
type seenEvents struct {
	lru *expirable.LRU[string, struct{}]
}

func newSeenEvents(size int, ttl time.Duration) *seenEvents {
	return &seenEvents{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// markSeen returns false when id was already handled.
func (s *seenEvents) markSeen(id string) bool {
	if id == "" {
		return true
	}
	if s.lru.Contains(id) {
		return false
	}
	s.lru.Add(id, struct{}{})
	return true
}
