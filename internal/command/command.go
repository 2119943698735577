// Package command implements the "!support" administration commands that
// support rooms use to manage their registry entry.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/relay"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/rs/zerolog/log"
)

const Prefix = "!support"

// Authorizer — источник power level пользователя в комнате.
type Authorizer interface {
	PowerLevel(ctx context.Context, roomID, userID string) (int, error)
}

type Deps struct {
	Destinations service.DestinationServicer
	Transport    relay.Transport
	Auth         Authorizer
}

type Options struct {
	AdminPowerLevel     int
	DestroyConfirmation string
}

type Handler struct {
	Deps
	opts Options
}

func New(deps Deps, opts Options) *Handler {
	if opts.AdminPowerLevel <= 0 {
		opts.AdminPowerLevel = 100
	}
	if opts.DestroyConfirmation == "" {
		opts.DestroyConfirmation = "yes-delete-this-entry"
	}
	return &Handler{Deps: deps, opts: opts}
}

// Handle executes evt if it is a command and reports whether it was one.
// Non-command messages are left untouched for the router.
func (h *Handler) Handle(ctx context.Context, evt relay.MessageEvent) (bool, error) {
	if evt.Sender == h.Transport.UserID() || evt.Type != relay.MessageText {
		return false, nil
	}
	body := strings.TrimSpace(evt.Body)
	name, rest, _ := strings.Cut(body, " ")
	if name != Prefix {
		return false, nil
	}
	sub, arg, _ := strings.Cut(strings.TrimSpace(rest), " ")
	arg = strings.TrimSpace(arg)

	log.Debug().Str("room", evt.RoomID).Str("sender", evt.Sender).Str("command", sub).Msg("command: received")

	var err error
	switch strings.ToLower(sub) {
	case "", "help":
		err = h.reply(ctx, evt, h.help())
	case "init":
		err = h.init(ctx, evt, arg)
	case "lock":
		err = h.lock(ctx, evt)
	case "unlock":
		err = h.unlock(ctx, evt)
	case "destroy":
		err = h.destroy(ctx, evt, arg)
	default:
		err = h.reply(ctx, evt, fmt.Sprintf("Unknown subcommand `%s`.\n\n%s", sub, h.help()))
	}
	return true, err
}

func (h *Handler) init(ctx context.Context, evt relay.MessageEvent, displayName string) error {
	ok, err := h.isAdmin(ctx, evt)
	if err != nil {
		return err
	}
	if !ok {
		return h.reply(ctx, evt, fmt.Sprintf("You need at least power level %d (administrator) to register this room for support.", h.opts.AdminPowerLevel))
	}
	if displayName == "" {
		return h.reply(ctx, evt, textInitUsage)
	}

	if _, err := h.Destinations.FindByRoom(ctx, evt.RoomID); err == nil {
		return h.reply(ctx, evt, textAlreadyRegistered)
	} else if !errors.Is(err, errs.ErrDestinationNotFound) {
		return err
	}

	inserted, err := h.Destinations.Register(ctx, evt.RoomID, displayName)
	if err != nil {
		return fmt.Errorf("register %s: %w", evt.RoomID, err)
	}
	if !inserted {
		// конфликт пары (room_id, display_name): уточняем, какая половина совпала
		if registered, err := h.registered(ctx, evt.RoomID); err != nil {
			return err
		} else if registered {
			return h.reply(ctx, evt, textAlreadyRegistered)
		}
		return h.reply(ctx, evt, fmt.Sprintf("A room named \"%s\" is already in the support registry. Please choose another name.", displayName))
	}
	log.Info().Str("room", evt.RoomID).Str("name", displayName).Str("sender", evt.Sender).Msg("command: destination registered")
	return h.reply(ctx, evt, fmt.Sprintf("This room was added to the support registry as \"%s\". Matrix users can reach you now.", displayName))
}

func (h *Handler) lock(ctx context.Context, evt relay.MessageEvent) error {
	return h.setLocked(ctx, evt, true)
}

func (h *Handler) unlock(ctx context.Context, evt relay.MessageEvent) error {
	return h.setLocked(ctx, evt, false)
}

func (h *Handler) setLocked(ctx context.Context, evt relay.MessageEvent, lock bool) error {
	registered, err := h.registered(ctx, evt.RoomID)
	if err != nil {
		return err
	}
	if !registered {
		return h.reply(ctx, evt, textNotRegistered)
	}
	locked, err := h.Destinations.IsLocked(ctx, evt.RoomID)
	if err != nil {
		return err
	}
	switch {
	case lock && locked:
		return h.reply(ctx, evt, "This room is already closed!")
	case !lock && !locked:
		return h.reply(ctx, evt, "This room is not closed.")
	case lock:
		if err := h.Destinations.Lock(ctx, evt.RoomID); err != nil {
			return err
		}
		log.Info().Str("room", evt.RoomID).Msg("command: destination locked")
		return h.reply(ctx, evt, "This room is now closed for support requests. Open it again with `!support unlock`.")
	default:
		if err := h.Destinations.Unlock(ctx, evt.RoomID); err != nil {
			return err
		}
		log.Info().Str("room", evt.RoomID).Msg("command: destination unlocked")
		return h.reply(ctx, evt, "This room is now open for support requests. Close it again with `!support lock`.")
	}
}

func (h *Handler) destroy(ctx context.Context, evt relay.MessageEvent, confirmation string) error {
	ok, err := h.isAdmin(ctx, evt)
	if err != nil {
		return err
	}
	if !ok {
		return h.reply(ctx, evt, fmt.Sprintf("You need at least power level %d (administrator) to delete the registry entry.", h.opts.AdminPowerLevel))
	}
	registered, err := h.registered(ctx, evt.RoomID)
	if err != nil {
		return err
	}
	if !registered {
		return h.reply(ctx, evt, "There is no entry for this room in the support registry.")
	}
	if confirmation != h.opts.DestroyConfirmation {
		return h.reply(ctx, evt, fmt.Sprintf("To make sure you delete this entry on purpose, send `!support destroy %s`.", h.opts.DestroyConfirmation))
	}
	if err := h.Destinations.Delete(ctx, evt.RoomID); err != nil {
		return err
	}
	log.Info().Str("room", evt.RoomID).Str("sender", evt.Sender).Msg("command: destination deleted")
	return h.reply(ctx, evt, "The support registry entry was deleted.")
}

func (h *Handler) isAdmin(ctx context.Context, evt relay.MessageEvent) (bool, error) {
	level, err := h.Auth.PowerLevel(ctx, evt.RoomID, evt.Sender)
	if err != nil {
		return false, fmt.Errorf("power level of %s: %w", evt.Sender, err)
	}
	return level >= h.opts.AdminPowerLevel, nil
}

func (h *Handler) registered(ctx context.Context, roomID string) (bool, error) {
	_, err := h.Destinations.FindByRoom(ctx, roomID)
	if errors.Is(err, errs.ErrDestinationNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (h *Handler) reply(ctx context.Context, evt relay.MessageEvent, text string) error {
	msg := relay.Notice(text)
	msg.ReplyTo = evt.ID
	if _, err := h.Transport.SendMessage(ctx, evt.RoomID, msg); err != nil {
		return fmt.Errorf("command reply in %s: %w", evt.RoomID, err)
	}
	return nil
}

const (
	textAlreadyRegistered = "This room already has an entry in the support registry!"
	textNotRegistered     = "This room has no entry in the support registry. Register it with `!support init <name>`."
	textInitUsage         = "Usage: `!support init <name>`\n\n- `name`: the room is shown under this name in the support list"
)

func (h *Handler) help() string {
	return "Support registry commands:\n\n" +
		"- `!support init <name>`: register this room under the given name\n" +
		"- `!support lock`: hide this room from the support list\n" +
		"- `!support unlock`: show this room in the support list again\n" +
		"- `!support destroy " + h.opts.DestroyConfirmation + "`: delete the registry entry\n" +
		"- `!support help`: show this help"
}
