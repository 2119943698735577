package relay

import (
	"testing"

	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSelectionPromptEscapesDisplayNames(t *testing.T) {
	msg := SelectionPrompt([]model.VisibleDestination{
		{Code: 3, DisplayName: "*Ops* [x](y)"},
		{Code: 7, DisplayName: "IT"},
	})

	assert.Contains(t, msg.FormattedBody, "*Ops* [x](y)")
	assert.NotContains(t, msg.FormattedBody, "<em>Ops</em>")
	assert.NotContains(t, msg.FormattedBody, "<a href")
	assert.Contains(t, msg.FormattedBody, "<strong>3</strong>")
	assert.Contains(t, msg.FormattedBody, "<li>IT - ID: <strong>7</strong></li>")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `C:\\temp`, escapeMarkdown(`C:\temp`))
	assert.Equal(t, `\_\_init\_\_`, escapeMarkdown("__init__"))
	assert.Equal(t, "Helpdesk", escapeMarkdown("Helpdesk"))
}
