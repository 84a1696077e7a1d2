package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client *sendgrid.Client
}

func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) Result {
	if err := validateMessage(msg); err != nil {
		return Result{Success: false, Error: err}
	}

	from := sgmail.NewEmail("", msg.From)
	to := sgmail.NewEmail("", msg.To)
	email := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("sendgrid send failed: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return Result{Success: false, Error: fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)}
	}

	id := ""
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	return Result{Success: true, MessageID: id}
}
