package emailsvc

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/tests"
)

func TestSendgridPrepare(t *testing.T) {
	conf := testutil.TestConfig()
	conf.SendgridApiKey = "SG.test"
	svc := NewSendgridService(conf, &testutil.Logger{})

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Aarav Sharma", Address: "aarav@school.test"}},
		Subject:     "Payment confirmed: Farewell",
		TextContent: "Your payment was confirmed.",
		HTMLContent: "<p>Your payment was confirmed.</p>",
	}
	require.NoError(t, msg.Attach(strings.NewReader("Event Name,Amount\nFarewell,200.00\n"), "statement_CS-01.csv", "text/csv; charset=utf-8"))
	require.NoError(t, msg.Attach(strings.NewReader("plain notes"), "notes.txt"))

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[ClassFund] Payment confirmed: Farewell", m.Personalizations[0].Subject)
	assert.Equal(t, "aarav@school.test", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/html", m.Content[1].Type)

	require.Len(t, m.Attachments, 2)
	assert.Equal(t, "statement_CS-01.csv", m.Attachments[0].Filename)
	assert.Equal(t, "text/csv; charset=utf-8", m.Attachments[0].Type)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
	decoded, err := base64.StdEncoding.DecodeString(m.Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "Event Name,Amount\nFarewell,200.00\n", string(decoded))
	assert.Equal(t, "text/plain; charset=utf-8", m.Attachments[1].Type, "content type is sniffed when not given")
}

func TestConsoleServiceWithAttachments(t *testing.T) {
	conf := testutil.TestConfig()
	logger := &testutil.Logger{}
	svc := NewConsoleServiceMock(conf, logger)

	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "diya@school.test"}},
		Subject: "Statement",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n"), "statement.csv", "text/csv"))
	svc.SendMessages(msg)

	sent := svc.Sent()
	require.Len(t, sent, 1, "a message with only attachments is still delivered")
	assert.Equal(t, "statement.csv", sent[0].Attachments[0].Filename)
	assert.Empty(t, logger.Entries())
}
