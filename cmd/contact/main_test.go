package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const testContactPath = "/api/contact"

type contactServerReply struct {
	status int
	body   string
}

func newContactServer(testingT *testing.T, reply contactServerReply, received *[]map[string]string) *httptest.Server {
	testingT.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != testContactPath {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		payload := map[string]string{}
		_ = json.NewDecoder(request.Body).Decode(&payload)
		*received = append(*received, payload)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(reply.status)
		_, _ = writer.Write([]byte(reply.body))
	}))
	testingT.Cleanup(server.Close)
	return server
}

func executeContactCommand(testingT *testing.T, arguments []string) (string, string, error) {
	testingT.Helper()
	command, commandErr := NewContactApplication().Command()
	require.NoError(testingT, commandErr)

	var stdout, stderr bytes.Buffer
	command.SetOut(&stdout)
	command.SetErr(&stderr)
	command.SetArgs(arguments)
	executeErr := command.Execute()
	return stdout.String(), stderr.String(), executeErr
}

func TestSubmitPrintsSuccessNotification(testingT *testing.T) {
	var received []map[string]string
	server := newContactServer(testingT, contactServerReply{status: http.StatusCreated, body: `{"success":true,"message":"Message sent successfully!"}`}, &received)

	stdout, _, executeErr := executeContactCommand(testingT, []string{
		submitUseName,
		"--" + flagNameAPIBaseURL, server.URL,
		"--" + flagNameName, "  Ana  ",
		"--" + flagNameEmail, "ana@example.com",
		"--" + flagNameMessage, "Hello there, nice work",
	})

	require.NoError(testingT, executeErr)
	require.Equal(testingT, "[success] Message sent successfully!\n", stdout)
	require.Len(testingT, received, 1)
	require.Equal(testingT, "Ana", received[0]["name"])
	require.Equal(testingT, "ana@example.com", received[0]["email"])
}

func TestSubmitReportsServerFailure(testingT *testing.T) {
	var received []map[string]string
	server := newContactServer(testingT, contactServerReply{status: http.StatusInternalServerError, body: `{"success":false,"error":"Failed to send message","details":"smtp: delivery failed"}`}, &received)

	stdout, _, executeErr := executeContactCommand(testingT, []string{
		submitUseName,
		"--" + flagNameAPIBaseURL, server.URL,
		"--" + flagNameName, "Ana",
		"--" + flagNameEmail, "ana@example.com",
		"--" + flagNameMessage, "Hello there, nice work",
	})

	require.Error(testingT, executeErr)
	require.Equal(testingT, "[error] Failed to send message\n", stdout)
	require.Len(testingT, received, 1)
}

func TestSubmitListsInvalidFieldsWithoutCallingServer(testingT *testing.T) {
	var received []map[string]string
	server := newContactServer(testingT, contactServerReply{status: http.StatusCreated, body: `{"success":true}`}, &received)

	stdout, stderr, executeErr := executeContactCommand(testingT, []string{
		submitUseName,
		"--" + flagNameAPIBaseURL, server.URL,
		"--" + flagNameName, "A",
		"--" + flagNameEmail, "not-an-email",
	})

	require.ErrorIs(testingT, executeErr, errInvalidForm)
	require.Empty(testingT, stdout)
	require.Equal(testingT, "email: Invalid email format\nmessage: Required field\nname: Name is too short\n", stderr)
	require.Empty(testingT, received)
}

func TestSubmitReadsBaseURLFromEnvironment(testingT *testing.T) {
	var received []map[string]string
	server := newContactServer(testingT, contactServerReply{status: http.StatusCreated, body: `{"success":true}`}, &received)
	testingT.Setenv(environmentKeyAPIBaseURL, server.URL)

	stdout, _, executeErr := executeContactCommand(testingT, []string{
		submitUseName,
		"--" + flagNameName, "Ana",
		"--" + flagNameEmail, "ana@example.com",
		"--" + flagNameMessage, "Hello there, nice work",
	})

	require.NoError(testingT, executeErr)
	require.Equal(testingT, "[success] Message sent successfully\n", stdout)
	require.Len(testingT, received, 1)
}

func TestSubmitReportsUnreachableServer(testingT *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	unreachableURL := server.URL
	server.Close()

	stdout, _, executeErr := executeContactCommand(testingT, []string{
		submitUseName,
		"--" + flagNameAPIBaseURL, unreachableURL,
		"--" + flagNameName, "Ana",
		"--" + flagNameEmail, "ana@example.com",
		"--" + flagNameMessage, "Hello there, nice work",
	})

	require.Error(testingT, executeErr)
	require.Equal(testingT, "[error] Server is not responding\n", stdout)
}
