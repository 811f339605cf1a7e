package alert

import (
	"log"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridDispatcher sends capacity alerts through the SendGrid mail relay.
type SendgridDispatcher struct {
	key       string
	from      *sgmail.Email
	recipient *sgmail.Email
}

var _ Dispatcher = (*SendgridDispatcher)(nil)

// NewSendgridDispatcher creates a dispatcher mailing a fixed recipient.
func NewSendgridDispatcher(apiKey, from, recipient string) *SendgridDispatcher {
	return &SendgridDispatcher{
		key:       apiKey,
		from:      sgmail.NewEmail("Smart Classroom", from),
		recipient: sgmail.NewEmail("", recipient),
	}
}

// Enqueue schedules one send attempt and returns immediately. Failures are
// logged, never surfaced to the request that triggered them.
func (d *SendgridDispatcher) Enqueue(task Task) {
	go d.send(task)
}

func (d *SendgridDispatcher) send(task Task) {
	body, err := task.Body()
	if err != nil {
		log.Printf("[Alert] rendering alert for %s: %v", task.ClassID, err)
		return
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(d.from)

	p := sgmail.NewPersonalization()
	p.Subject = task.Subject()
	p.AddTos(d.recipient)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", body))

	req := sendgrid.GetRequest(d.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		log.Printf("[Alert] sending alert for %s: %v", task.ClassID, err)
	} else if res.StatusCode >= http.StatusBadRequest {
		log.Printf("[Alert] sending alert for %s - status: %d - body: %s", task.ClassID, res.StatusCode, res.Body)
	}
}
