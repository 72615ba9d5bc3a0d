// utils/email.go
package utils

import (
	"fmt"
	"html"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"go-storefront/models"
)

// Mailer delivers a single HTML email
type Mailer interface {
	Send(toEmail, subject, htmlContent string) error
}

// PostmarkMailer sends email through Postmark
type PostmarkMailer struct {
	client *postmark.Client
	sender string
}

// NewPostmarkMailer creates a mailer for the given server token
func NewPostmarkMailer(serverToken, sender string) *PostmarkMailer {
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, ""),
		sender: sender,
	}
}

func (m *PostmarkMailer) Send(toEmail, subject, htmlContent string) error {
	res, err := m.client.SendEmail(postmark.Email{
		From:     m.sender,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: stripTags(htmlContent),
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("postmark rejected email (code %d): %s", res.ErrorCode, res.Message)
	}
	return nil
}

// SendGridMailer sends email through SendGrid
type SendGridMailer struct {
	client *sendgrid.Client
	sender string
}

// NewSendGridMailer creates a mailer for the given API key
func NewSendGridMailer(apiKey, sender string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		sender: sender,
	}
}

func (m *SendGridMailer) Send(toEmail, subject, htmlContent string) error {
	from := mail.NewEmail("Storefront", m.sender)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, stripTags(htmlContent), htmlContent)

	res, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email (status %d): %s", res.StatusCode, res.Body)
	}
	return nil
}

// NoopMailer logs emails instead of sending them. Used when no provider is configured.
type NoopMailer struct {
	Log logrus.FieldLogger
}

func (m NoopMailer) Send(toEmail, subject, _ string) error {
	if m.Log != nil {
		m.Log.WithFields(logrus.Fields{"to": toEmail, "subject": subject}).Debug("email delivery disabled")
	}
	return nil
}

func stripTags(s string) string {
	replacer := strings.NewReplacer("<br>", "\n", "<strong>", "", "</strong>", "", "<p>", "", "</p>", "\n")
	return replacer.Replace(s)
}

// EmailService composes the storefront's notification emails
type EmailService struct {
	mailer Mailer
	log    logrus.FieldLogger
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(mailer Mailer, log logrus.FieldLogger) *EmailService {
	return &EmailService{mailer: mailer, log: log}
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	if err := es.mailer.Send(toEmail, subject, htmlContent); err != nil {
		return err
	}
	es.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject}).Info("email sent")
	return nil
}

// Go sends an email in the background and logs a failure. Request handlers
// use it so that delivery never delays or fails the response.
func (es *EmailService) Go(send func() error) {
	go func() {
		if err := send(); err != nil {
			es.log.WithError(err).Warn("failed to send notification email")
		}
	}()
}

// SendWelcomeEmail greets a newly registered user
func (es *EmailService) SendWelcomeEmail(user models.User) error {
	subject := "Welcome to the Storefront"
	htmlContent := fmt.Sprintf(
		"<strong>Hi %s,</strong><br><br>Your account <strong>%s</strong> is ready. Happy shopping!",
		html.EscapeString(user.Name),
		html.EscapeString(user.Username),
	)
	return es.SendEmail(user.Email, subject, htmlContent)
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(toEmail string, order models.Order) error {
	subject := "Order Confirmation"
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Thank you for your purchase! Your order (ID: %d) has been placed successfully.<br><br>Total Amount: <strong>$%s</strong><br>Shipping to: <strong>%s</strong><br><br>Thank you for shopping with us!",
		order.ID,
		order.Total,
		html.EscapeString(order.ShippingAddress),
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendOrderStatusEmail tells the user that their order or its payment changed state
func (es *EmailService) SendOrderStatusEmail(toEmail string, order models.Order) error {
	subject := fmt.Sprintf("Order #%d Update", order.ID)
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Your order (ID: %d) is now <strong>%s</strong>.<br>Payment status: <strong>%s</strong>",
		order.ID,
		order.Status,
		order.PaymentStatus,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}
