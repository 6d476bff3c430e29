package contactclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// ContactPath is the submission endpoint relative to the API base URL.
	ContactPath = "/api/contact"

	defaultRequestTimeout = 15 * time.Second
	responseBodyLimit     = 64 * 1024
)

var (
	// ErrInvalidBaseURL indicates the API base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("contactclient: invalid base url")
)

// NoResponseError means the request left but nothing came back: timeout, refused connection, DNS failure.
type NoResponseError struct {
	Err error
}

func (noResponseError *NoResponseError) Error() string {
	return "no response from server: " + noResponseError.Err.Error()
}

func (noResponseError *NoResponseError) Unwrap() error {
	return noResponseError.Err
}

// Response is the decoded reply of the submission endpoint. Fields absent from the body stay empty.
type Response struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Details    string `json:"details"`
}

// Succeeded reports a 2xx status.
func (response Response) Succeeded() bool {
	return response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices
}

// Transport sends one form to the server.
type Transport interface {
	Send(ctx context.Context, form Form) (Response, error)
}

// APIClient posts forms to the contact endpoint as JSON.
type APIClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewAPIClient builds a client for baseURL. A nil httpClient gets a default with a request timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) (*APIClient, error) {
	parsedBaseURL, parseErr := url.Parse(strings.TrimSpace(baseURL))
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, parseErr)
	}
	if (parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https") || parsedBaseURL.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &APIClient{
		endpoint:   strings.TrimRight(parsedBaseURL.String(), "/") + ContactPath,
		httpClient: httpClient,
	}, nil
}

// Send issues exactly one POST. Any HTTP response is returned without error; a request that
// never got an answer yields *NoResponseError.
func (client *APIClient) Send(ctx context.Context, form Form) (Response, error) {
	encoded, encodeErr := json.Marshal(form)
	if encodeErr != nil {
		return Response{}, encodeErr
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint, bytes.NewReader(encoded))
	if requestErr != nil {
		return Response{}, requestErr
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	httpResponse, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return Response{}, &NoResponseError{Err: doErr}
	}
	defer httpResponse.Body.Close()

	response := Response{StatusCode: httpResponse.StatusCode}
	body, readErr := io.ReadAll(io.LimitReader(httpResponse.Body, responseBodyLimit))
	if readErr == nil && len(body) > 0 {
		_ = json.Unmarshal(body, &response)
	}
	return response, nil
}
