package relay

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithHardWraps()))

const textWelcome = "Hi, welcome to the support bot! To open a ticket just send me a message " +
	"with your request and I will explain everything else."

const (
	textOnlyTicket       = "Please use only text for your ticket!"
	textOnlyAnswer       = "Please answer with text only!"
	textFinishCurrent    = "Please finish creating your current ticket before you start another one!"
	textUnknownCode      = "This does not look like a valid ID. Try again, and reply to this message this time."
	textLocked           = "This support group exists but is currently closed."
	textSubmitted        = "Your ticket has been submitted. You will get an answer here as soon as possible."
	textAlreadySubmitted = "This request has already been submitted."
	textAnswerSent       = "Your answer was sent and the ticket is now closed."
	textNoDestinations   = "There are no support groups available right now. Please try again later."
	textNotDelivered     = "Your last ticket could not be delivered. Please send it again."
)

// Notice renders markdown into a notice with an HTML body.
func Notice(md string) OutboundMessage {
	return OutboundMessage{Type: MessageNotice, Body: md, FormattedBody: renderMarkdown(md)}
}

func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return html.EscapeString(md)
	}
	return strings.TrimSpace(buf.String())
}

// SelectionPrompt — нумерованный список видимых комнат поддержки.
func SelectionPrompt(visible []model.VisibleDestination) OutboundMessage {
	var b strings.Builder
	b.WriteString("*Please reply to this message with the ID of the group your ticket should be sent to:*\n")
	for i, d := range visible {
		fmt.Fprintf(&b, "\n%d. %s - ID: **%d**", i+1, escapeMarkdown(d.DisplayName), d.Code)
	}
	return Notice(b.String())
}

// markdownEscaper экранирует пунктуацию CommonMark: имя комнаты выводится как есть.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`(`, `\(`, `)`, `\)`, `#`, `\#`, `+`, `\+`, `-`, `\-`, `.`, `\.`,
	`!`, `\!`, `<`, `\<`, `>`, `\>`, `~`, `\~`, `|`, `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// htmlContent returns the message as HTML, escaping plain bodies.
func htmlContent(e MessageEvent) string {
	if e.FormattedBody != "" {
		return e.FormattedBody
	}
	return strings.ReplaceAll(html.EscapeString(e.Body), "\n", "<br>")
}

func forwardedTicket(sel model.PendingSelection) OutboundMessage {
	return OutboundMessage{
		Type: MessageText,
		Body: fmt.Sprintf("New ticket:\n\n%s\n\nSent by %s.\n\nReply to this message to answer.", sel.Body, sel.Creator),
		FormattedBody: fmt.Sprintf("<b><h5>New ticket:</h5></b><hr>%s<hr><em>Sent by %s.<br><br>"+
			"Reply to this message to answer.</em>", sel.Content, html.EscapeString(sel.Creator)),
	}
}

func answer(reply MessageEvent, t model.Ticket) OutboundMessage {
	return OutboundMessage{
		Type:          MessageText,
		Body:          fmt.Sprintf("Answer:\n\n%s\n\nYour ticket is now closed.", reply.Body),
		FormattedBody: fmt.Sprintf("<b><h5>Answer:</h5></b><hr>%s<hr><em>Your ticket is now closed.</em>", htmlContent(reply)),
		ReplyTo:       t.OriginalMessage,
	}
}
