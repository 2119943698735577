package relay

import "context"

// MessageType is the chat-level message kind (m.text, m.notice, m.image, ...).
type MessageType string

const (
	MessageText   MessageType = "m.text"
	MessageNotice MessageType = "m.notice"
)

const MembershipJoin = "join"

// MessageEvent — входящее сообщение, уже приведённое к нейтральной форме транспортом.
type MessageEvent struct {
	ID            string
	RoomID        string
	Sender        string
	Type          MessageType
	Body          string
	FormattedBody string
	// ReplyTo — id сообщения, на которое это сообщение отвечает; пусто, если это не ответ.
	ReplyTo string
}

// IsReply reports whether the message carries a reply relation.
func (e MessageEvent) IsReply() bool { return e.ReplyTo != "" }

type MembershipEvent struct {
	ID         string
	RoomID     string
	Sender     string
	Target     string
	Membership string
	// Direct — комната помечена как личный диалог (is_direct).
	Direct bool
}

type OutboundMessage struct {
	Type          MessageType
	Body          string
	FormattedBody string
	ReplyTo       string
}

// Transport отправляет сообщения и знает, какие комнаты — личные диалоги с ботом.
type Transport interface {
	UserID() string
	SendMessage(ctx context.Context, roomID string, msg OutboundMessage) (string, error)
	IsDirect(ctx context.Context, roomID string) (bool, error)
}
