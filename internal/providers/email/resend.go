package email

import (
	"context"

	"github.com/resend/resend-go/v2"
)

type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *ResendTransport {
	return &ResendTransport{client: resend.NewClient(apiKey), from: from}
}

func (t *ResendTransport) Name() string { return "resend" }

func (t *ResendTransport) Deliver(ctx context.Context, msg Message) (string, error) {
	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}
