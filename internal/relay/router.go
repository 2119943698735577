package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/kafka"
	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/rs/zerolog/log"
)

// Deps — зависимости роутера (D: зависимость от абстракций).
type Deps struct {
	Destinations service.DestinationServicer
	Tickets      service.TicketServicer
	Transport    Transport
	// Producer может быть nil.
	Producer kafka.TicketEventProducer
}

type Options struct {
	PendingTTL   time.Duration
	PendingLimit int
	DedupSize    int
	DedupTTL     time.Duration
}

// Router превращает входящие сообщения в тикеты и возвращает ответы авторам.
// События обрабатываются под одним мьютексом: нагрузка маленькая, а обе карты общие.
type Router struct {
	Deps

	mu      sync.Mutex
	pending *pendingSelections
	mirrors mirrorIndex
	seen    *seenEvents
	// events — события тикетов, ещё не отданные продюсеру.
	events sync.WaitGroup
}

func NewRouter(deps Deps, opts Options) *Router {
	if opts.PendingLimit <= 0 {
		opts.PendingLimit = 1024
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = 4096
	}
	return &Router{
		Deps:    deps,
		pending: newPendingSelections(opts.PendingLimit, opts.PendingTTL),
		mirrors: make(mirrorIndex),
		seen:    newSeenEvents(opts.DedupSize, opts.DedupTTL),
	}
}

// Warm rebuilds the mirror index from the open tickets in the store.
func (r *Router) Warm(ctx context.Context) error {
	tickets, err := r.Tickets.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	idx := make(mirrorIndex, len(tickets))
	for _, t := range tickets {
		idx.put(t)
	}
	r.mu.Lock()
	r.mirrors = idx
	r.mu.Unlock()
	log.Info().Int("open_tickets", len(tickets)).Msg("relay: mirror index loaded")
	return nil
}

// Reconcile surfaces tickets that were written but never confirmed: the forwarded
// message may or may not exist in the destination room. The requester is told to
// resend and the provisional row is removed.
func (r *Router) Reconcile(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale, err := r.Tickets.ListPending(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list pending tickets: %w", err)
	}
	for i := range stale {
		t := &stale[i]
		log.Warn().
			Uint64("ticket_id", t.ID).
			Str("original_room", t.OriginalRoom).
			Str("mirrored_room", t.MirroredRoom).
			Time("created_at", t.CreatedAt).
			Msg("relay: ticket was never confirmed, forwarded message may be orphaned")
		if _, err := r.Transport.SendMessage(ctx, t.OriginalRoom, Notice(textNotDelivered)); err != nil {
			log.Warn().Err(err).Uint64("ticket_id", t.ID).Msg("relay: notify requester about undelivered ticket")
		}
		if err := r.Tickets.DeleteByID(ctx, t.ID); err != nil {
			return i, fmt.Errorf("delete ticket %d: %w", t.ID, err)
		}
		r.produce(kafka.EventTicketAbandoned, *t, model.TicketStatusClosed)
	}
	return len(stale), nil
}

// HandleMembership sends the welcome notice once the bot has joined a direct room.
func (r *Router) HandleMembership(ctx context.Context, evt MembershipEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seen.markSeen(evt.ID) {
		return nil
	}
	if evt.Membership != MembershipJoin || evt.Target != r.Transport.UserID() || !evt.Direct {
		return nil
	}
	if _, err := r.Transport.SendMessage(ctx, evt.RoomID, Notice(textWelcome)); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

// HandleMessage — единая точка входа для m.room.message.
func (r *Router) HandleMessage(ctx context.Context, evt MessageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if evt.Sender == r.Transport.UserID() {
		return nil
	}
	if !r.seen.markSeen(evt.ID) {
		return nil
	}

	if evt.IsReply() {
		if t, ok := r.mirrors.lookup(evt.RoomID, evt.ReplyTo); ok {
			return r.closeTicket(ctx, evt, t)
		}
	}

	direct, err := r.Transport.IsDirect(ctx, evt.RoomID)
	if err != nil {
		log.Error().Err(err).Str("room", evt.RoomID).Str("event", evt.ID).Msg("relay: cannot tell whether room is direct, dropping event")
		return nil
	}
	if !direct {
		return nil
	}

	state, sel := r.pending.state(evt.RoomID)
	switch state {
	case StateIdle:
		if evt.IsReply() {
			return nil
		}
		return r.openRequest(ctx, evt)
	case StateAwaitingDestination:
		if evt.IsReply() {
			return r.selectDestination(ctx, evt, sel)
		}
		return r.respond(ctx, evt, textFinishCurrent)
	default:
		return fmt.Errorf("relay: unexpected requester state %v", state)
	}
}

func (r *Router) closeTicket(ctx context.Context, evt MessageEvent, t model.Ticket) error {
	if evt.Type != MessageText {
		return r.respond(ctx, evt, textOnlyAnswer)
	}
	if _, err := r.Transport.SendMessage(ctx, t.OriginalRoom, answer(evt, t)); err != nil {
		return fmt.Errorf("relay answer for ticket %d: %w", t.ID, err)
	}
	if err := r.Tickets.DeleteByID(ctx, t.ID); err != nil {
		return fmt.Errorf("delete ticket %d: %w", t.ID, err)
	}
	r.mirrors.remove(t)
	r.produce(kafka.EventTicketClosed, t, model.TicketStatusClosed)
	log.Info().Uint64("ticket_id", t.ID).Str("room", evt.RoomID).Msg("relay: ticket closed")
	return r.respond(ctx, evt, textAnswerSent)
}

func (r *Router) openRequest(ctx context.Context, evt MessageEvent) error {
	if evt.Type != MessageText {
		return r.respond(ctx, evt, textOnlyTicket)
	}
	visible, err := r.Destinations.ListVisible(ctx)
	if err != nil {
		return fmt.Errorf("list destinations: %w", err)
	}
	if len(visible) == 0 {
		return r.respond(ctx, evt, textNoDestinations)
	}
	if _, err := r.Transport.SendMessage(ctx, evt.RoomID, SelectionPrompt(visible)); err != nil {
		return fmt.Errorf("send selection prompt: %w", err)
	}
	r.pending.put(model.PendingSelection{
		OriginalMessage: evt.ID,
		OriginalRoom:    evt.RoomID,
		Content:         htmlContent(evt),
		Body:            evt.Body,
		Creator:         evt.Sender,
		CreatedAt:       time.Now(),
	})
	log.Debug().Str("room", evt.RoomID).Int("pending", r.pending.len()).Msg("relay: awaiting destination")
	return nil
}

func (r *Router) selectDestination(ctx context.Context, evt MessageEvent, sel model.PendingSelection) error {
	code, err := parseCode(evt.Body)
	if err != nil {
		return r.respond(ctx, evt, textUnknownCode)
	}
	dest, err := r.Destinations.FindByCode(ctx, code)
	if errors.Is(err, errs.ErrDestinationNotFound) {
		return r.respond(ctx, evt, textUnknownCode)
	}
	if err != nil {
		return fmt.Errorf("find destination %d: %w", code, err)
	}
	if dest.Locked {
		// выбор сохраняется: автор может ответить другим кодом
		return r.respond(ctx, evt, textLocked)
	}

	t := &model.Ticket{
		OriginalMessage: sel.OriginalMessage,
		OriginalRoom:    sel.OriginalRoom,
		MirroredRoom:    dest.RoomID,
		Creator:         sel.Creator,
	}
	if err := r.Tickets.CreatePending(ctx, t); err != nil {
		if errors.Is(err, errs.ErrTicketExists) {
			r.pending.clear(evt.RoomID)
			return r.respond(ctx, evt, textAlreadySubmitted)
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	mirrorID, err := r.Transport.SendMessage(ctx, dest.RoomID, forwardedTicket(sel))
	if err != nil {
		if derr := r.Tickets.DeleteByID(ctx, t.ID); derr != nil {
			log.Error().Err(derr).Uint64("ticket_id", t.ID).Msg("relay: drop provisional ticket")
		}
		return fmt.Errorf("forward ticket to %s: %w", dest.RoomID, err)
	}
	t.MirroredMessage = mirrorID
	t.Status = model.TicketStatusOpen
	// Сообщение уже в комнате поддержки, поэтому тикет попадает в индекс даже без Confirm:
	// ответ оператора найдёт его и удалит строку. Иначе строка остаётся pending до сверки при старте.
	confirmErr := r.Tickets.Confirm(ctx, t.ID, mirrorID)
	if confirmErr != nil {
		t.Status = model.TicketStatusPending
		log.Error().Err(confirmErr).Uint64("ticket_id", t.ID).Msg("relay: confirm ticket, kept in mirror index")
	}

	r.mirrors.put(*t)
	r.pending.clear(evt.RoomID)
	r.produce(kafka.EventTicketOpened, *t, model.TicketStatusOpen)
	log.Info().Uint64("ticket_id", t.ID).Uint64("code", code).Str("room", evt.RoomID).Msg("relay: ticket opened")
	if err := r.respond(ctx, evt, textSubmitted); err != nil {
		return err
	}
	if confirmErr != nil {
		return fmt.Errorf("confirm ticket %d: %w", t.ID, confirmErr)
	}
	return nil
}

func (r *Router) respond(ctx context.Context, evt MessageEvent, text string) error {
	if _, err := r.Transport.SendMessage(ctx, evt.RoomID, Notice(text)); err != nil {
		return fmt.Errorf("respond in %s: %w", evt.RoomID, err)
	}
	return nil
}

// produce fire-and-forget: событие должно уйти даже после отмены ctx обработки, но с таймаутом.
func (r *Router) produce(event string, t model.Ticket, status model.TicketStatus) {
	if r.Producer == nil {
		return
	}
	payload := kafka.TicketPayload(&t, status)
	r.events.Add(1)
	go func() {
		defer r.events.Done()
		eventCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.Producer.ProduceTicketEvent(eventCtx, event, payload)
	}()
}

// Flush waits until every ticket event handed to the producer has been written.
// Call it before closing the producer.
func (r *Router) Flush() {
	r.events.Wait()
}

// State reports where the requester room is in the selection flow.
func (r *Router) State(roomID string) RequesterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, _ := r.pending.state(roomID)
	return state
}

// OpenTicket looks a ticket up in the mirror index.
func (r *Router) OpenTicket(mirrorRoom, mirrorMessage string) (model.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mirrors.lookup(mirrorRoom, mirrorMessage)
}

func (r *Router) Stats() (pending, open int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.len(), len(r.mirrors)
}

func parseCode(body string) (uint64, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return 0, errors.New("empty code")
	}
	return strconv.ParseUint(strings.TrimPrefix(fields[0], "#"), 10, 64)
}
