package contactclient_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/folio/internal/contactclient"
)

type scriptedTransport struct {
	mutex    sync.Mutex
	calls    []contactclient.Form
	response contactclient.Response
	err      error
	release  chan struct{}
	entered  chan struct{}
}

func (transport *scriptedTransport) Send(ctx context.Context, form contactclient.Form) (contactclient.Response, error) {
	transport.mutex.Lock()
	transport.calls = append(transport.calls, form)
	transport.mutex.Unlock()
	if transport.entered != nil {
		transport.entered <- struct{}{}
	}
	if transport.release != nil {
		<-transport.release
	}
	return transport.response, transport.err
}

func (transport *scriptedTransport) callCount() int {
	transport.mutex.Lock()
	defer transport.mutex.Unlock()
	return len(transport.calls)
}

type recordingNotifier struct {
	notifications []contactclient.Notification
}

func (notifier *recordingNotifier) Notify(notification contactclient.Notification) {
	notifier.notifications = append(notifier.notifications, notification)
}

func TestSubmitSucceedsAndResetsForm(testingT *testing.T) {
	transport := &scriptedTransport{response: contactclient.Response{
		StatusCode: http.StatusCreated,
		Success:    true,
		Message:    "Message sent successfully!",
	}}
	notifier := &recordingNotifier{}
	submission := contactclient.NewSubmission(transport, notifier)

	resetForm, submitErr := submission.Submit(context.Background(), validForm())

	require.NoError(testingT, submitErr)
	require.Equal(testingT, contactclient.Form{}, resetForm)
	require.Equal(testingT, 1, transport.callCount())
	require.Equal(testingT, contactclient.Status{State: contactclient.StateSucceeded, Message: "Message sent successfully!"}, submission.Snapshot())
	require.Len(testingT, notifier.notifications, 1)
	require.Equal(testingT, contactclient.SeveritySuccess, notifier.notifications[0].Severity)
	require.Equal(testingT, "Message sent successfully!", notifier.notifications[0].Text)
	require.Equal(testingT, 6*time.Second, notifier.notifications[0].AutoHide)
}

func TestSubmitMapsOutcomesToStatus(testingT *testing.T) {
	testCases := []struct {
		name     string
		response contactclient.Response
		err      error
		expected contactclient.Status
	}{
		{
			name:     "success without message",
			response: contactclient.Response{StatusCode: http.StatusOK},
			expected: contactclient.Status{State: contactclient.StateSucceeded, Message: "Message sent successfully"},
		},
		{
			name:     "server error field",
			response: contactclient.Response{StatusCode: http.StatusInternalServerError, Error: "Failed to send message", Details: "smtp: delivery failed"},
			expected: contactclient.Status{State: contactclient.StateFailed, Error: "Failed to send message"},
		},
		{
			name:     "server message field",
			response: contactclient.Response{StatusCode: http.StatusBadRequest, Message: "All fields are required"},
			expected: contactclient.Status{State: contactclient.StateFailed, Error: "All fields are required"},
		},
		{
			name:     "unstructured error body",
			response: contactclient.Response{StatusCode: http.StatusBadGateway},
			expected: contactclient.Status{State: contactclient.StateFailed, Error: "Server error"},
		},
		{
			name:     "no response",
			err:      &contactclient.NoResponseError{Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}},
			expected: contactclient.Status{State: contactclient.StateFailed, Error: "Server is not responding"},
		},
		{
			name:     "unexpected",
			err:      errors.New("json: unsupported value"),
			expected: contactclient.Status{State: contactclient.StateFailed, Error: "Unexpected error"},
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(subTest *testing.T) {
			transport := &scriptedTransport{response: testCase.response, err: testCase.err}
			notifier := &recordingNotifier{}
			submission := contactclient.NewSubmission(transport, notifier)

			form := validForm()
			returnedForm, submitErr := submission.Submit(context.Background(), form)

			require.Equal(subTest, testCase.expected, submission.Snapshot())
			require.Equal(subTest, 1, transport.callCount())
			require.Len(subTest, notifier.notifications, 1)
			if testCase.expected.State == contactclient.StateFailed {
				require.ErrorIs(subTest, submitErr, contactclient.ErrSubmissionFailed)
				require.Equal(subTest, form, returnedForm)
				require.Equal(subTest, contactclient.SeverityError, notifier.notifications[0].Severity)
				require.Equal(subTest, testCase.expected.Error, notifier.notifications[0].Text)
				return
			}
			require.NoError(subTest, submitErr)
			require.Equal(subTest, contactclient.SeveritySuccess, notifier.notifications[0].Severity)
		})
	}
}

func TestSubmitInvalidFormStaysOffline(testingT *testing.T) {
	transport := &scriptedTransport{}
	notifier := &recordingNotifier{}
	submission := contactclient.NewSubmission(transport, notifier)

	form := contactclient.Form{Name: "A", Email: "nope", Message: "short"}
	returnedForm, submitErr := submission.Submit(context.Background(), form)

	var validationError *contactclient.ValidationError
	require.True(testingT, errors.As(submitErr, &validationError))
	require.Equal(testingT, []string{"email", "message", "name"}, validationError.Fields.Fields())
	require.Equal(testingT, form, returnedForm)
	require.Zero(testingT, transport.callCount())
	require.Empty(testingT, notifier.notifications)
	require.Equal(testingT, contactclient.Status{State: contactclient.StateIdle}, submission.Snapshot())
}

func TestSubmitRejectsSecondSubmitWhileLoading(testingT *testing.T) {
	transport := &scriptedTransport{
		response: contactclient.Response{StatusCode: http.StatusCreated, Message: "Message sent successfully!"},
		release:  make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	notifier := &recordingNotifier{}
	submission := contactclient.NewSubmission(transport, notifier)

	firstDone := make(chan error, 1)
	go func() {
		_, submitErr := submission.Submit(context.Background(), validForm())
		firstDone <- submitErr
	}()
	<-transport.entered

	require.Equal(testingT, contactclient.Status{State: contactclient.StateLoading}, submission.Snapshot())
	_, secondErr := submission.Submit(context.Background(), validForm())
	require.ErrorIs(testingT, secondErr, contactclient.ErrSubmissionInProgress)
	require.Empty(testingT, notifier.notifications)

	close(transport.release)
	require.NoError(testingT, <-firstDone)
	require.Equal(testingT, 1, transport.callCount())
	require.Len(testingT, notifier.notifications, 1)
}

func TestNotificationDismissClearsStatus(testingT *testing.T) {
	transport := &scriptedTransport{response: contactclient.Response{StatusCode: http.StatusInternalServerError, Error: "Server error"}}
	notifier := &recordingNotifier{}
	submission := contactclient.NewSubmission(transport, notifier)

	_, submitErr := submission.Submit(context.Background(), validForm())
	require.Error(testingT, submitErr)
	require.Equal(testingT, contactclient.StateFailed, submission.Snapshot().State)

	notifier.notifications[0].Dismiss()
	require.Equal(testingT, contactclient.Status{State: contactclient.StateIdle}, submission.Snapshot())
}

func TestSubmitAfterFailureClearsPreviousTexts(testingT *testing.T) {
	transport := &scriptedTransport{response: contactclient.Response{StatusCode: http.StatusInternalServerError}}
	submission := contactclient.NewSubmission(transport, nil)

	_, firstErr := submission.Submit(context.Background(), validForm())
	require.Error(testingT, firstErr)
	require.Equal(testingT, "Server error", submission.Snapshot().Error)

	transport.response = contactclient.Response{StatusCode: http.StatusCreated}
	_, secondErr := submission.Submit(context.Background(), validForm())
	require.NoError(testingT, secondErr)
	require.Equal(testingT, contactclient.Status{State: contactclient.StateSucceeded, Message: "Message sent successfully"}, submission.Snapshot())
}
