package core

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	msg := EmailMessage{
		Subject:      "Attendance",
		TemplateName: "attendance_digest",
		TemplateData: map[string]interface{}{"Date": "2024-03-05", "Present": 3, "Absent": 2, "Total": 5},
	}
	require.NoError(t, msg.Render("Playmate"))
	assert.Contains(t, msg.TextContent, "Attendance for 2024-03-05")
	assert.Contains(t, msg.TextContent, "Present: 3")
	assert.Contains(t, msg.TextContent, "Playmate")
	assert.Contains(t, msg.HTMLContent, "<strong>2</strong>")

	msg = EmailMessage{Subject: "plain", BodyStr: "hello"}
	require.NoError(t, msg.Render("Playmate"))
	assert.Equal(t, "hello", msg.TextContent)
	assert.Empty(t, msg.HTMLContent)
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg EmailMessage
	require.NoError(t, msg.Attach(strings.NewReader("ID,Name\n1,Ravi\n"), "day.csv", "text/csv"))
	require.NoError(t, msg.Attach(bytes.NewReader([]byte("plain text")), "note.txt"))

	require.True(t, msg.HasAttachments())
	at := msg.Attachments[0]
	assert.Equal(t, "day.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	decoded, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, "ID,Name\n1,Ravi\n", string(decoded))

	assert.Equal(t, "text/plain; charset=utf-8", msg.Attachments[1].ContentType)
}
