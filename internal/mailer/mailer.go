// Package mailer delivers notification emails through one transport chosen at startup.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	TransportSMTP   = "smtp"
	TransportOAuth2 = "oauth2"
	TransportHTTP   = "http"
	TransportLog    = "log"

	StageConfiguration = "configuration"
	StageComposition   = "message composition"
	StageTokenRefresh  = "token refresh"
	StageConnection    = "connection"
	StageDelivery      = "delivery"
	StageRequest       = "request"
	StageResponse      = "provider response"

	defaultOperationTimeout = 30 * time.Second
	genericDeliveryDetails  = "delivery failed"
)

var (
	// ErrUnsupportedTransport indicates the configured transport name is unknown.
	ErrUnsupportedTransport = errors.New("mailer: unsupported transport")
	// ErrMissingConfiguration indicates a transport is missing a required setting.
	ErrMissingConfiguration = errors.New("mailer: missing configuration")
	// ErrInvalidMessage indicates a message lacks a sender or recipient.
	ErrInvalidMessage = errors.New("mailer: invalid message")
)

// Message is a single plain-text notification.
type Message struct {
	FromName string
	From     string
	To       string
	ReplyTo  string
	Subject  string
	Text     string
}

// Sender delivers messages. Implementations are safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// Verifier is implemented by transports that can check their connection ahead of the first send.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Config selects and configures the transport.
type Config struct {
	Transport        string
	SMTP             SMTPConfig
	OAuth2           OAuth2Config
	HTTP             HTTPConfig
	OperationTimeout time.Duration
}

// DeliveryError describes a failed send. Error returns the full provider detail for logs,
// Details returns a reason that is safe to hand to API clients.
type DeliveryError struct {
	Transport string
	Stage     string
	Err       error
}

func (deliveryError *DeliveryError) Error() string {
	return fmt.Sprintf("%s transport: %s: %v", deliveryError.Transport, deliveryError.Stage, deliveryError.Err)
}

func (deliveryError *DeliveryError) Unwrap() error {
	return deliveryError.Err
}

// Details returns the sanitized failure reason.
func (deliveryError *DeliveryError) Details() string {
	return fmt.Sprintf("%s: %s failed", deliveryError.Transport, deliveryError.Stage)
}

// Details extracts the sanitized reason from any error returned by a Sender.
func Details(err error) string {
	var deliveryError *DeliveryError
	if errors.As(err, &deliveryError) {
		return deliveryError.Details()
	}
	return genericDeliveryDetails
}

// New constructs the Sender for the configured transport.
func New(configuration Config, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if configuration.OperationTimeout <= 0 {
		configuration.OperationTimeout = defaultOperationTimeout
	}

	transport := strings.ToLower(strings.TrimSpace(configuration.Transport))
	if transport == "" {
		transport = TransportSMTP
	}

	var (
		sender       Sender
		transportErr error
	)
	switch transport {
	case TransportSMTP:
		sender, transportErr = newSMTPSender(configuration.SMTP, configuration.OperationTimeout)
	case TransportOAuth2:
		sender, transportErr = newOAuth2Sender(configuration.SMTP, configuration.OAuth2, configuration.OperationTimeout)
	case TransportHTTP:
		sender, transportErr = newHTTPSender(configuration.HTTP, configuration.OperationTimeout)
	case TransportLog:
		sender = NewLogSender(logger)
	default:
		transportErr = fmt.Errorf("%w: %s", ErrUnsupportedTransport, transport)
	}
	if transportErr != nil {
		return nil, transportErr
	}
	return sender, nil
}

func validateMessage(message Message) error {
	if strings.TrimSpace(message.From) == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(message.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	return nil
}

func missingSetting(transport string, setting string) error {
	return fmt.Errorf("%w: %s %s is required", ErrMissingConfiguration, transport, setting)
}
