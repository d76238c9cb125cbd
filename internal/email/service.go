package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"gopkg.in/gomail.v2"

	"github.com/megcare/caseflow/internal/config"
	"github.com/megcare/caseflow/internal/model"
)

type Service interface {
	SendAssignment(ctx context.Context, n model.AssignmentNotification) error
}

var assignmentText = template.Must(template.New("assignment.txt").Parse(`Hello {{.AssigneeName}},

{{.AssignedBy}} assigned case #{{.CaseID}} at {{.HospitalName}} to you (priority: {{.Priority}}).
{{if .Notes}}
Notes: {{.Notes}}
{{end}}
Open the case: {{.CaseURL}}
`))

var assignmentHTML = htmltemplate.Must(htmltemplate.New("assignment.html").Parse(`<p>Hello {{.AssigneeName}},</p>
<p>{{.AssignedBy}} assigned case <strong>#{{.CaseID}}</strong> at {{.HospitalName}} to you (priority: {{.Priority}}).</p>
{{if .Notes}}<blockquote>{{.Notes}}</blockquote>{{end}}
<p><a href="{{.CaseURL}}">Open the case</a></p>
`))

// SMTPService sends mail through an SMTP relay.
type SMTPService struct {
	from string
	send func(...*gomail.Message) error
}

func NewSMTPService(cfg config.MailConfig) *SMTPService {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPService{from: cfg.From, send: dialer.DialAndSend}
}

// NewService sends through an arbitrary gomail sender.
func NewService(from string, sender gomail.Sender) *SMTPService {
	return &SMTPService{
		from: from,
		send: func(m ...*gomail.Message) error { return gomail.Send(sender, m...) },
	}
}

func (s *SMTPService) SendAssignment(ctx context.Context, n model.AssignmentNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var text, html bytes.Buffer
	if err := assignmentText.Execute(&text, n); err != nil {
		return fmt.Errorf("failed to render assignment mail: %w", err)
	}
	if err := assignmentHTML.Execute(&html, n); err != nil {
		return fmt.Errorf("failed to render assignment mail: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", n.Recipient)
	m.SetHeader("Subject", fmt.Sprintf("[%s] Case #%d assigned to you", n.HospitalName, n.CaseID))
	m.SetBody("text/plain", text.String())
	m.AddAlternative("text/html", html.String())

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send assignment mail to %s: %w", n.Recipient, err)
	}
	return nil
}
