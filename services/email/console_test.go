package emailsvc

import (
	"bytes"
	"net/http"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(&core.Config{AppName: "Salas"}, &testutil.Logger{})

	to := []mail.Address{{Name: "Tech", Address: "tech@x.com"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "plain", BodyStr: "3 participants absent"},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: to, Subject: "no content"},
	)

	require.Len(t, SentMessages, 1)
	assert.Equal(t, "plain", SentMessages[0].Subject)
	assert.Equal(t, "3 participants absent", SentMessages[0].TextContent)
}

func TestSendgridService_prepare(t *testing.T) {
	conf := &core.Config{AppName: "Salas", SendgridApiKey: "key"}
	svc := NewSendgridService(conf, &testutil.Logger{}).(*sendgridService)

	m := svc.build(core.EmailMessage{
		To:          []mail.Address{{Name: "Tech", Address: "tech@x.com"}},
		Cc:          []mail.Address{{Address: "lead@x.com"}},
		Subject:     "Room monitoring report",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Salas] Room monitoring report", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "tech@x.com", p.To[0].Address)
	require.Len(t, p.CC, 1)
	assert.Equal(t, "Salas", m.From.Name)
	assert.Len(t, m.Content, 2)
}

func TestSendgridService_build_textOnly(t *testing.T) {
	svc := NewSendgridService(&core.Config{AppName: "Salas"}, &testutil.Logger{}).(*sendgridService)

	m := svc.build(core.EmailMessage{
		To:          []mail.Address{{Address: "tech@x.com"}},
		Subject:     "alert",
		TextContent: "text",
		Attachments: []core.Attachment{{Content: bytes.NewBufferString("a,b"), ContentType: "text/csv", Filename: "rooms.csv"}},
	})
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "rooms.csv", m.Attachments[0].Filename)
	assert.Empty(t, m.Personalizations[0].CC)
}

func TestSendgridService_send(t *testing.T) {
	svc := NewSendgridService(&core.Config{AppName: "Salas", SendgridApiKey: "key"}, &testutil.Logger{}).(*sendgridService)
	msg := core.EmailMessage{To: []mail.Address{{Address: "tech@x.com"}}, Subject: "alert", TextContent: "text"}

	var got rest.Request
	svc.do = func(req rest.Request) (*rest.Response, error) {
		got = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}
	require.NoError(t, svc.send(msg))
	assert.Equal(t, rest.Method(http.MethodPost), got.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", got.BaseURL)
	assert.Contains(t, string(got.Body), `"subject":"[Salas] alert"`)

	svc.do = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	assert.EqualError(t, svc.send(msg), "sendgrid answered 401: bad key")

	svc.do = func(rest.Request) (*rest.Response, error) { return nil, errors.New("timeout") }
	assert.EqualError(t, svc.send(msg), "calling sendgrid: timeout")
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleServiceMock(&core.Config{AppName: "Salas"}, &testutil.Logger{}).(*consoleService)
	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	raw, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Name: "Tech", Address: "tech@x.com"}},
		Subject:     "Room monitoring report",
		TextContent: "2 absent",
		HTMLContent: "<p>2 absent</p>",
	}, date)
	require.NoError(t, err)
	assert.Contains(t, raw, "Subject: [Salas] Room monitoring report\r\n")
	assert.Contains(t, raw, "To: \"Tech\" <tech@x.com>\r\n")
	assert.Contains(t, raw, "Date: Fri, 01 Mar 2024 09:00:00 +0000\r\n")
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=")
	assert.NotContains(t, raw, "Cc:")
	assert.Contains(t, raw, "2 absent")
	assert.Contains(t, raw, "<p>2 absent</p>")
	assert.NotContains(t, raw, "multipart/mixed")

	raw, err = svc.format(core.EmailMessage{
		To:          []mail.Address{{Address: "tech@x.com"}},
		Subject:     "export",
		TextContent: "see attachment",
		Attachments: []core.Attachment{{Content: bytes.NewBufferString("a,b"), ContentType: "text/csv", Filename: "rooms.csv"}},
	}, date)
	require.NoError(t, err)
	assert.True(t, strings.Contains(raw, "Content-Type: multipart/mixed; boundary="))
	assert.Contains(t, raw, `attachment; filename="rooms.csv"`)
	assert.NotContains(t, raw, "text/html")
}
