package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TLSModeStartTLS = "starttls"
	TLSModeSSL      = "ssl"
	TLSModeNone     = "none"

	defaultSMTPPort  = 587
	headerDateLayout = time.RFC1123Z
)

var errStartTLSUnavailable = errors.New("server does not advertise STARTTLS")

// SMTPConfig describes an SMTP relay. The OAuth2 transport reuses it with Password ignored.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLSMode  string
}

type authenticator func(ctx context.Context) (smtp.Auth, error)

type smtpSender struct {
	transport     string
	configuration SMTPConfig
	authenticate  authenticator
	timeout       time.Duration
}

func newSMTPSender(configuration SMTPConfig, timeout time.Duration) (*smtpSender, error) {
	normalized, err := normalizeSMTPConfig(TransportSMTP, configuration)
	if err != nil {
		return nil, err
	}
	if normalized.Username != "" && normalized.Password == "" {
		return nil, missingSetting(TransportSMTP, "password")
	}

	sender := &smtpSender{
		transport:     TransportSMTP,
		configuration: normalized,
		timeout:       timeout,
	}
	sender.authenticate = func(context.Context) (smtp.Auth, error) {
		if normalized.Username == "" {
			return nil, nil
		}
		return smtp.PlainAuth("", normalized.Username, normalized.Password, normalized.Host), nil
	}
	return sender, nil
}

func normalizeSMTPConfig(transport string, configuration SMTPConfig) (SMTPConfig, error) {
	configuration.Host = strings.TrimSpace(configuration.Host)
	configuration.Username = strings.TrimSpace(configuration.Username)
	configuration.TLSMode = strings.ToLower(strings.TrimSpace(configuration.TLSMode))
	if configuration.Host == "" {
		return SMTPConfig{}, missingSetting(transport, "host")
	}
	if configuration.Port <= 0 {
		configuration.Port = defaultSMTPPort
	}
	switch configuration.TLSMode {
	case "":
		configuration.TLSMode = TLSModeStartTLS
	case TLSModeStartTLS, TLSModeSSL, TLSModeNone:
	default:
		return SMTPConfig{}, fmt.Errorf("%w: %s tls mode %q", ErrMissingConfiguration, transport, configuration.TLSMode)
	}
	return configuration, nil
}

func (sender *smtpSender) Send(ctx context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return sender.fail(StageComposition, err)
	}
	payload, err := composeMessage(message, time.Now())
	if err != nil {
		return sender.fail(StageComposition, err)
	}

	operationContext, cancel := context.WithTimeout(ctx, sender.timeout)
	defer cancel()

	client, err := sender.open(operationContext)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(message.From); err != nil {
		return sender.fail(StageDelivery, err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return sender.fail(StageDelivery, err)
	}
	dataWriter, err := client.Data()
	if err != nil {
		return sender.fail(StageDelivery, err)
	}
	if _, err := dataWriter.Write(payload); err != nil {
		_ = dataWriter.Close()
		return sender.fail(StageDelivery, err)
	}
	if err := dataWriter.Close(); err != nil {
		return sender.fail(StageDelivery, err)
	}
	if err := client.Quit(); err != nil {
		return sender.fail(StageDelivery, err)
	}
	return nil
}

// Verify connects, negotiates TLS and authenticates without sending anything.
func (sender *smtpSender) Verify(ctx context.Context) error {
	operationContext, cancel := context.WithTimeout(ctx, sender.timeout)
	defer cancel()

	client, err := sender.open(operationContext)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Quit(); err != nil {
		return sender.fail(StageConnection, err)
	}
	return nil
}

func (sender *smtpSender) open(ctx context.Context) (*smtp.Client, error) {
	auth, err := sender.authenticate(ctx)
	if err != nil {
		return nil, sender.fail(StageTokenRefresh, err)
	}

	connection, err := sender.dial(ctx)
	if err != nil {
		return nil, sender.fail(StageConnection, err)
	}
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		_ = connection.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(connection, sender.configuration.Host)
	if err != nil {
		_ = connection.Close()
		return nil, sender.fail(StageConnection, err)
	}

	if sender.configuration.TLSMode == TLSModeStartTLS {
		if supported, _ := client.Extension("STARTTLS"); !supported {
			_ = client.Close()
			return nil, sender.fail(StageConnection, errStartTLSUnavailable)
		}
		if err := client.StartTLS(&tls.Config{ServerName: sender.configuration.Host}); err != nil {
			_ = client.Close()
			return nil, sender.fail(StageConnection, err)
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, sender.fail(StageConnection, err)
		}
	}
	return client, nil
}

func (sender *smtpSender) dial(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(sender.configuration.Host, strconv.Itoa(sender.configuration.Port))
	if sender.configuration.TLSMode == TLSModeSSL {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: sender.configuration.Host}}
		return dialer.DialContext(ctx, "tcp", address)
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", address)
}

func (sender *smtpSender) fail(stage string, err error) error {
	return &DeliveryError{Transport: sender.transport, Stage: stage, Err: err}
}

// composeMessage renders a plain-text RFC 5322 message. A reply-to address that does not
// parse is left out rather than failing the send.
func composeMessage(message Message, sentAt time.Time) ([]byte, error) {
	fromAddress, err := mail.ParseAddress(message.From)
	if err != nil {
		return nil, fmt.Errorf("%w: sender address: %v", ErrInvalidMessage, err)
	}
	if message.FromName != "" {
		fromAddress.Name = message.FromName
	}
	toAddress, err := mail.ParseAddress(message.To)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient address: %v", ErrInvalidMessage, err)
	}

	var buffer bytes.Buffer
	writeHeader(&buffer, "From", fromAddress.String())
	writeHeader(&buffer, "To", toAddress.String())
	if replyToAddress, replyErr := mail.ParseAddress(strings.TrimSpace(message.ReplyTo)); replyErr == nil {
		writeHeader(&buffer, "Reply-To", replyToAddress.String())
	}
	writeHeader(&buffer, "Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	writeHeader(&buffer, "Date", sentAt.Format(headerDateLayout))
	writeHeader(&buffer, "Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), addressDomain(fromAddress.Address)))
	writeHeader(&buffer, "MIME-Version", "1.0")
	writeHeader(&buffer, "Content-Type", "text/plain; charset=UTF-8")
	writeHeader(&buffer, "Content-Transfer-Encoding", "quoted-printable")
	buffer.WriteString("\r\n")

	bodyWriter := quotedprintable.NewWriter(&buffer)
	if _, err := bodyWriter.Write([]byte(message.Text)); err != nil {
		return nil, err
	}
	if err := bodyWriter.Close(); err != nil {
		return nil, err
	}
	buffer.WriteString("\r\n")
	return buffer.Bytes(), nil
}

func writeHeader(buffer *bytes.Buffer, name string, value string) {
	buffer.WriteString(name)
	buffer.WriteString(": ")
	buffer.WriteString(value)
	buffer.WriteString("\r\n")
}

func addressDomain(address string) string {
	if index := strings.LastIndex(address, "@"); index >= 0 && index < len(address)-1 {
		return address[index+1:]
	}
	return "localhost"
}
