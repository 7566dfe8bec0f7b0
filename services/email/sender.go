package emailsvc

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/avamec/salas/core"
)

// sender holds what every delivery backend shares: branding of the subject and
// rendering of the message before it leaves.
type sender struct {
	appName string
	logger  core.Logger
}

func newSender(conf *core.Config, logger core.Logger) sender {
	return sender{appName: conf.AppName, logger: logger}
}

func (s sender) subject(msg core.EmailMessage) string {
	return fmt.Sprintf("[%s] %s", s.appName, msg.Subject)
}

// prepare renders msg and reports whether it can be delivered.
// Messages without recipients or without anything to say are dropped silently.
func (s sender) prepare(msg *core.EmailMessage) bool {
	msg.SetAppName(s.appName)
	if err := msg.Render(); err != nil {
		s.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.Subject, err), errors.Wrap(err, "rendering email"))
		return false
	}
	return msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments())
}
