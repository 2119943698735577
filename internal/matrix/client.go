// Package matrix adapts a mautrix client to the relay transport, the command
// authorizer and the inbound event loop.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/relay"
	"github.com/rs/zerolog/log"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type Config struct {
	HomeserverURL string
	UserID        string
	AccessToken   string
}

// Handler получает уже нормализованные события.
type Handler interface {
	HandleMessage(ctx context.Context, evt relay.MessageEvent) error
	HandleMembership(ctx context.Context, evt relay.MembershipEvent) error
}

type Client struct {
	cli *mautrix.Client
	// directMu сериализует read-modify-write над m.direct.
	directMu sync.Mutex
}

func New(cfg Config) (*Client, error) {
	cli, err := mautrix.NewClient(cfg.HomeserverURL, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: new client: %w", err)
	}
	cli.Log = log.Logger.With().Str("component", "matrix").Logger()
	return &Client{cli: cli}, nil
}

func (c *Client) UserID() string {
	return c.cli.UserID.String()
}

func (c *Client) SendMessage(ctx context.Context, roomID string, msg relay.OutboundMessage) (string, error) {
	resp, err := c.cli.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, toContent(msg))
	if err != nil {
		return "", fmt.Errorf("matrix: send to %s: %w", roomID, err)
	}
	return resp.EventID.String(), nil
}

// IsDirect смотрит в account data m.direct. Без неё бот не может отличить личный диалог.
func (c *Client) IsDirect(ctx context.Context, roomID string) (bool, error) {
	direct, err := c.directRooms(ctx)
	if err != nil {
		return false, err
	}
	return containsRoom(direct, id.RoomID(roomID)), nil
}

// PowerLevel reads the user's level from m.room.power_levels.
func (c *Client) PowerLevel(ctx context.Context, roomID, userID string) (int, error) {
	var pl event.PowerLevelsEventContent
	if err := c.cli.StateEvent(ctx, id.RoomID(roomID), event.StatePowerLevels, "", &pl); err != nil {
		return 0, fmt.Errorf("matrix: power levels of %s: %w", roomID, err)
	}
	return pl.GetUserLevel(id.UserID(userID)), nil
}

// Run синхронизируется с homeserver до отмены ctx. Ошибки обработчиков логируются и не
// останавливают цикл.
func (c *Client) Run(ctx context.Context, h Handler) error {
	syncer, ok := c.cli.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unsupported syncer")
	}
	syncer.OnSync(c.cli.DontProcessOldEvents)
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		c.onMember(ctx, evt, h)
	})
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		msg, ok := ToMessageEvent(evt)
		if !ok {
			return
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			log.Error().Err(err).Str("room", msg.RoomID).Str("event", msg.ID).Msg("matrix: handle message")
		}
	})

	log.Info().Str("user", c.UserID()).Msg("matrix: sync started")
	err := c.cli.SyncWithContext(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) onMember(ctx context.Context, evt *event.Event, h Handler) {
	member := evt.Content.AsMember()
	if evt.GetStateKey() == c.UserID() && member.Membership == event.MembershipInvite {
		c.acceptInvite(ctx, evt.RoomID, evt.Sender, member.IsDirect)
		return
	}
	if err := h.HandleMembership(ctx, ToMembershipEvent(evt)); err != nil {
		log.Error().Err(err).Str("room", evt.RoomID.String()).Str("event", evt.ID.String()).Msg("matrix: handle membership")
	}
}

func (c *Client) acceptInvite(ctx context.Context, roomID id.RoomID, inviter id.UserID, direct bool) {
	if _, err := c.cli.JoinRoomByID(ctx, roomID); err != nil {
		log.Error().Err(err).Str("room", roomID.String()).Msg("matrix: join invited room")
		return
	}
	log.Info().Str("room", roomID.String()).Str("inviter", inviter.String()).Bool("direct", direct).Msg("matrix: joined room")
	if !direct {
		return
	}
	if err := c.markDirect(ctx, roomID, inviter); err != nil {
		log.Error().Err(err).Str("room", roomID.String()).Msg("matrix: record direct room")
	}
}

func (c *Client) directRooms(ctx context.Context) (event.DirectChatsEventContent, error) {
	var direct event.DirectChatsEventContent
	err := c.cli.GetAccountData(ctx, event.AccountDataDirectChats.Type, &direct)
	if errors.Is(err, mautrix.MNotFound) {
		return nil, errs.ErrDirectUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("matrix: read m.direct: %w", err)
	}
	return direct, nil
}

func (c *Client) markDirect(ctx context.Context, roomID id.RoomID, peer id.UserID) error {
	c.directMu.Lock()
	defer c.directMu.Unlock()

	direct, err := c.directRooms(ctx)
	if errors.Is(err, errs.ErrDirectUnknown) {
		direct = event.DirectChatsEventContent{}
	} else if err != nil {
		return err
	}
	if slices.Contains(direct[peer], roomID) {
		return nil
	}
	direct[peer] = append(direct[peer], roomID)
	return c.cli.SetAccountData(ctx, event.AccountDataDirectChats.Type, direct)
}

func containsRoom(direct event.DirectChatsEventContent, roomID id.RoomID) bool {
	for _, rooms := range direct {
		if slices.Contains(rooms, roomID) {
			return true
		}
	}
	return false
}
