package matrix

import (
	"github.com/psds-microservice/support-relay/internal/relay"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ToMessageEvent converts m.room.message. Edits are skipped: only the original
// message takes part in a ticket.
func ToMessageEvent(evt *event.Event) (relay.MessageEvent, bool) {
	content := evt.Content.AsMessage()
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return relay.MessageEvent{}, false
	}
	replyTo := content.RelatesTo.GetReplyTo()
	if replyTo != "" {
		content.RemoveReplyFallback()
	}
	out := relay.MessageEvent{
		ID:      evt.ID.String(),
		RoomID:  evt.RoomID.String(),
		Sender:  evt.Sender.String(),
		Type:    relay.MessageType(content.MsgType),
		Body:    content.Body,
		ReplyTo: replyTo.String(),
	}
	if content.Format == event.FormatHTML {
		out.FormattedBody = content.FormattedBody
	}
	return out, true
}

// ToMembershipEvent переносит is_direct и из текущего, и из предыдущего состояния:
// после join флаг обычно остаётся только в prev_content (из invite).
func ToMembershipEvent(evt *event.Event) relay.MembershipEvent {
	member := evt.Content.AsMember()
	direct := member.IsDirect
	if prev := evt.Unsigned.PrevContent; prev != nil {
		_ = prev.ParseRaw(event.StateMember)
		if pm, ok := prev.Parsed.(*event.MemberEventContent); ok && pm.IsDirect {
			direct = true
		}
	}
	return relay.MembershipEvent{
		ID:         evt.ID.String(),
		RoomID:     evt.RoomID.String(),
		Sender:     evt.Sender.String(),
		Target:     evt.GetStateKey(),
		Membership: string(member.Membership),
		Direct:     direct,
	}
}

func toContent(msg relay.OutboundMessage) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MessageType(msg.Type),
		Body:    msg.Body,
	}
	if content.MsgType == "" {
		content.MsgType = event.MsgText
	}
	if msg.FormattedBody != "" {
		content.Format = event.FormatHTML
		content.FormattedBody = msg.FormattedBody
	}
	if msg.ReplyTo != "" {
		content.RelatesTo = &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(msg.ReplyTo)},
		}
	}
	return content
}
