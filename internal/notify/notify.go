package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("order has no recipient email")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}).ParseFS(templateFS, "templates/*.html"))

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type emailData struct {
	Name    string
	OrderID string
	Items   []domain.OrderItem
	Pricing domain.CartPricing
	Address domain.Address
}

type Notifier struct {
	mailer Mailer
	logger *zap.Logger
}

func NewNotifier(mailer Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{mailer: mailer, logger: logger}
}

func (n *Notifier) OrderConfirmed(ctx context.Context, order *domain.Order) error {
	return n.send(ctx, order, "order_confirmation.html", fmt.Sprintf("Order %s confirmed", shortID(order.ID)))
}

func (n *Notifier) OrderShipped(ctx context.Context, order *domain.Order) error {
	return n.send(ctx, order, "order_shipped.html", fmt.Sprintf("Order %s has shipped", shortID(order.ID)))
}

func (n *Notifier) send(ctx context.Context, order *domain.Order, tmpl, subject string) error {
	if order.Email == "" {
		return ErrNoRecipient
	}
	html, err := render(tmpl, emailData{
		Name:    firstName(order.ShippingAddress.Name),
		OrderID: order.ID,
		Items:   order.Items,
		Pricing: order.Pricing,
		Address: order.ShippingAddress,
	})
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, Message{To: order.Email, Subject: subject, HTML: html}); err != nil {
		return fmt.Errorf("send %s: %w", tmpl, err)
	}
	n.logger.Info("email sent",
		zap.String("template", tmpl),
		zap.String("order_id", order.ID))
	return nil
}

func render(name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return ""
}
