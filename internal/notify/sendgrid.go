package notify

import (
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridNotifier delivers messages through the SendGrid mail API. Each
// message goes out on its own goroutine; a failed send is logged and does not
// affect the others.
type SendgridNotifier struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

var _ Notifier = (*SendgridNotifier)(nil)

func NewSendgridNotifier(apiKey, fromEmail, fromName string, logger *zap.Logger) *SendgridNotifier {
	return &SendgridNotifier{
		key:    apiKey,
		from:   sgmail.NewEmail(fromName, fromEmail),
		logger: logger,
	}
}

func (n *SendgridNotifier) Send(messages ...*Message) {
	for _, msg := range messages {
		go n.send(msg)
	}
}

func (n *SendgridNotifier) send(msg *Message) {
	if msg.To == "" {
		return
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	req := sendgrid.GetRequest(n.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		n.logger.Error("Failed to send email",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return
	}
	if res.StatusCode >= http.StatusBadRequest {
		n.logger.Error("Email rejected by gateway",
			zap.String("to", msg.To),
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body),
		)
	}
}
