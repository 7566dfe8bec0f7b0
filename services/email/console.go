package emailsvc

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/avamec/salas/core"
)

var (
	// SentMessages collects every message the console backend delivered.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// ResetSentMessages clears SentMessages.
func ResetSentMessages() {
	mu.Lock()
	defer mu.Unlock()
	SentMessages = make([]core.EmailMessage, 0)
}

func record(msg core.EmailMessage) {
	mu.Lock()
	defer mu.Unlock()
	SentMessages = append(SentMessages, msg)
}

// consoleService writes messages as MIME text instead of delivering them.
type consoleService struct {
	sender
	from  mail.Address
	out   io.Writer
	async bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{sender: newSender(conf, logger), from: conf.DefaultFromEmail(), out: os.Stdout, async: true}
}

// NewConsoleServiceMock returns a console service that sends synchronously and prints nothing.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{sender: newSender(conf, logger), from: conf.DefaultFromEmail(), out: io.Discard}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.async {
			go svc.deliver(msg)
		} else {
			svc.deliver(msg)
		}
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if !svc.prepare(msg) {
		return
	}
	raw, err := svc.format(*msg, time.Now())
	if err != nil {
		svc.logger.Error(fmt.Sprintf("formatting email %q: %v", msg.Subject, err), err)
		return
	}
	_, _ = io.WriteString(svc.out, raw)
	record(*msg)
}

// format lays msg out as a multipart/alternative message, wrapped in multipart/mixed
// when it carries attachments.
func (svc *consoleService) format(msg core.EmailMessage, date time.Time) (string, error) {
	var b strings.Builder
	header := []struct{ key, value string }{
		{"From", svc.from.String()},
		{"To", addressList(msg.To)},
		{"Cc", addressList(msg.Cc)},
		{"Bcc", addressList(msg.Bcc)},
		{"Subject", svc.subject(msg)},
		{"Date", date.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
	}
	for _, h := range header {
		if h.value != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", h.key, h.value)
		}
	}

	var body strings.Builder
	alt := multipart.NewWriter(&body)
	if err := writePart(alt, "text/plain; charset=utf-8", "", msg.TextContent); err != nil {
		return "", err
	}
	if msg.HTMLContent != "" {
		if err := writePart(alt, "text/html; charset=utf-8", "", msg.HTMLContent); err != nil {
			return "", err
		}
	}
	if err := alt.Close(); err != nil {
		return "", errors.Wrap(err, "closing alternative parts")
	}
	altType := "multipart/alternative; boundary=" + alt.Boundary()

	if !msg.HasAttachments() {
		fmt.Fprintf(&b, "Content-Type: %s\r\n\r\n%s", altType, body.String())
		return b.String(), nil
	}

	var outer strings.Builder
	mixed := multipart.NewWriter(&outer)
	if err := writePart(mixed, altType, "", body.String()); err != nil {
		return "", err
	}
	for _, at := range msg.Attachments {
		if err := writePart(mixed, at.ContentType, at.Filename, at.Content.String()); err != nil {
			return "", err
		}
	}
	if err := mixed.Close(); err != nil {
		return "", errors.Wrap(err, "closing mixed parts")
	}
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n%s", mixed.Boundary(), outer.String())
	return b.String(), nil
}

func writePart(w *multipart.Writer, contentType, filename, content string) error {
	h := textproto.MIMEHeader{"Content-Type": {contentType}}
	if filename != "" {
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "creating %s part", contentType)
	}
	_, err = io.WriteString(part, content+"\r\n")
	return errors.Wrapf(err, "writing %s part", contentType)
}

func addressList(addrs []mail.Address) string {
	list := make([]string, len(addrs))
	for i, a := range addrs {
		list[i] = a.String()
	}
	return strings.Join(list, ", ")
}
