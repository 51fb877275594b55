package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrUnavailable = errors.New("email provider unavailable")

type ResendMailer struct {
	client *resend.Client
	from   string
	cb     *gobreaker.CircuitBreaker[string]
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &ResendMailer{
		client: resend.NewCustomClient(httpClient, apiKey),
		from:   from,
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "resend",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.cb.Execute(func() (string, error) {
		resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
			From:    m.from,
			To:      []string{msg.To},
			Subject: msg.Subject,
			Html:    msg.HTML,
		})
		if err != nil {
			return "", err
		}
		return resp.Id, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
