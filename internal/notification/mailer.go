package notification

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// Kind is the ticket event a mail is about.
type Kind string

const (
	KindCreated Kind = "created"
	KindClosed  Kind = "closed"
)

// Mail is one outbound message.
type Mail struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// LogMailer writes mail to the log instead of delivering it.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a log-backed mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, mail Mail) error {
	m.logger.Info("mail",
		zap.String("from", mail.From),
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject),
		zap.Int("html_bytes", len(mail.HTML)))
	return nil
}

// Message is the rendered subject and body for a ticket mail.
type Message struct {
	Subject string
	HTML    string
}

var nonDialable = regexp.MustCompile(`[^0-9+]`)

// Render builds the mail for a ticket. reporterUsername may be empty.
func Render(kind Kind, ticket domain.Ticket, departmentName, reporterUsername, linkURL string) Message {
	action := "creado"
	if kind == KindClosed {
		action = "cerrado"
	}

	subject := fmt.Sprintf("[%s] %s · Ticket #%d - %s", departmentName, ticket.Category, ticket.ID, ticket.Subject)

	reporter := ticket.CreatorName
	if reporterUsername != "" {
		reporter = fmt.Sprintf("%s (%s)", ticket.CreatorName, reporterUsername)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Se ha %s un ticket de tu departamento.</p>\n<ul>\n", action)
	fmt.Fprintf(&b, "  <li><strong>ID:</strong> %d</li>\n", ticket.ID)
	fmt.Fprintf(&b, "  <li><strong>Departamento:</strong> %s</li>\n", html.EscapeString(departmentName))
	fmt.Fprintf(&b, "  <li><strong>Categoría:</strong> %s</li>\n", html.EscapeString(ticket.Category))
	fmt.Fprintf(&b, "  <li><strong>Asunto:</strong> %s</li>\n", html.EscapeString(ticket.Subject))
	fmt.Fprintf(&b, "  <li><strong>Reportado por:</strong> %s</li>\n", html.EscapeString(reporter))
	if ticket.ContactPhone != nil && *ticket.ContactPhone != "" {
		phone := *ticket.ContactPhone
		fmt.Fprintf(&b, "  <li><strong>Teléfono:</strong> <a href=\"tel:%s\">%s</a></li>\n",
			nonDialable.ReplaceAllString(phone, ""), html.EscapeString(phone))
	}
	b.WriteString("</ul>\n")
	fmt.Fprintf(&b, "<p><a href=\"%s\">Ver ticket</a></p>\n", html.EscapeString(linkURL))

	return Message{Subject: subject, HTML: b.String()}
}
