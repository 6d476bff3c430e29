package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

const (
	// DefaultAPIEndpoint is the Resend-compatible send endpoint.
	DefaultAPIEndpoint = "https://api.resend.com/emails"

	providerErrorBodyLimit = 4096
)

// HTTPConfig configures the transactional email HTTP API transport.
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

type httpSender struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

type apiEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func newHTTPSender(configuration HTTPConfig, timeout time.Duration) (*httpSender, error) {
	apiKey := strings.TrimSpace(configuration.APIKey)
	if apiKey == "" {
		return nil, missingSetting(TransportHTTP, "api key")
	}
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}
	httpClient := configuration.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &httpSender{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

func (sender *httpSender) Send(ctx context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return sender.fail(StageComposition, err)
	}

	payload := apiEmailRequest{
		From:    formatSender(message),
		To:      []string{message.To},
		Subject: message.Subject,
		Text:    message.Text,
	}
	if replyToAddress, err := mail.ParseAddress(strings.TrimSpace(message.ReplyTo)); err == nil {
		payload.ReplyTo = replyToAddress.Address
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return sender.fail(StageComposition, err)
	}

	operationContext, cancel := context.WithTimeout(ctx, sender.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(operationContext, http.MethodPost, sender.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return sender.fail(StageRequest, err)
	}
	request.Header.Set("Authorization", "Bearer "+sender.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := sender.httpClient.Do(request)
	if err != nil {
		return sender.fail(StageRequest, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, providerErrorBodyLimit))
		return sender.fail(StageResponse, fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(body))))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func (sender *httpSender) fail(stage string, err error) error {
	return &DeliveryError{Transport: TransportHTTP, Stage: stage, Err: err}
}

func formatSender(message Message) string {
	if message.FromName == "" {
		return message.From
	}
	return (&mail.Address{Name: message.FromName, Address: message.From}).String()
}
