package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MarkoPoloResearchLab/folio/internal/contactclient"
)

const (
	commandUseName          = "contact"
	commandShortDescription = "Send a message through the portfolio contact form"
	submitUseName           = "submit"
	submitShortDescription  = "Validate and submit a contact message"

	flagNameAPIBaseURL = "api-base-url"
	flagNameTimeout    = "timeout"
	flagNameName       = "name"
	flagNameEmail      = "email"
	flagNameMessage    = "message"

	environmentKeyAPIBaseURL = "API_BASE_URL"
	environmentKeyTimeout    = "API_TIMEOUT"

	defaultAPIBaseURL = "http://localhost:5000"
	defaultTimeout    = 15 * time.Second

	fieldErrorLineFormat   = "%s: %s\n"
	notificationLineFormat = "[%s] %s\n"
	invalidFormMessage     = "contact form has invalid fields"
)

var errInvalidForm = errors.New(invalidFormMessage)

// ContactApplication wires the submit command to the portfolio API.
type ContactApplication struct {
	configurationLoader *viper.Viper
}

// NewContactApplication creates a ContactApplication reading API_BASE_URL and API_TIMEOUT from the environment.
func NewContactApplication() *ContactApplication {
	return &ContactApplication{configurationLoader: viper.New()}
}

// Command builds the root command with its submit subcommand.
func (application *ContactApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:           commandUseName,
		Short:         commandShortDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootFlags := rootCommand.PersistentFlags()
	rootFlags.String(flagNameAPIBaseURL, defaultAPIBaseURL, "base URL of the portfolio API")
	rootFlags.Duration(flagNameTimeout, defaultTimeout, "upper bound for the whole request")

	application.configurationLoader.SetDefault(environmentKeyAPIBaseURL, defaultAPIBaseURL)
	application.configurationLoader.SetDefault(environmentKeyTimeout, defaultTimeout)
	application.configurationLoader.AutomaticEnv()
	if bindErr := application.configurationLoader.BindPFlag(environmentKeyAPIBaseURL, rootFlags.Lookup(flagNameAPIBaseURL)); bindErr != nil {
		return nil, bindErr
	}
	if bindErr := application.configurationLoader.BindPFlag(environmentKeyTimeout, rootFlags.Lookup(flagNameTimeout)); bindErr != nil {
		return nil, bindErr
	}

	submitCommand := &cobra.Command{
		Use:   submitUseName,
		Short: submitShortDescription,
		Args:  cobra.NoArgs,
		RunE:  application.runSubmit,
	}
	submitFlags := submitCommand.Flags()
	submitFlags.String(flagNameName, "", "your name")
	submitFlags.String(flagNameEmail, "", "address the owner can reply to")
	submitFlags.String(flagNameMessage, "", "message body")

	rootCommand.AddCommand(submitCommand)
	return rootCommand, nil
}

func (application *ContactApplication) runSubmit(command *cobra.Command, arguments []string) error {
	form, formErr := readForm(command)
	if formErr != nil {
		return formErr
	}

	apiClient, clientErr := contactclient.NewAPIClient(application.configurationLoader.GetString(environmentKeyAPIBaseURL), nil)
	if clientErr != nil {
		return clientErr
	}

	output := command.OutOrStdout()
	submission := contactclient.NewSubmission(apiClient, contactclient.NotifierFunc(func(notification contactclient.Notification) {
		fmt.Fprintf(output, notificationLineFormat, notification.Severity, notification.Text)
	}))

	ctx := command.Context()
	if timeout := application.configurationLoader.GetDuration(environmentKeyTimeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, submitErr := submission.Submit(ctx, form)
	var validationError *contactclient.ValidationError
	if errors.As(submitErr, &validationError) {
		writeFieldErrors(command.ErrOrStderr(), validationError.Fields)
		return errInvalidForm
	}
	return submitErr
}

func readForm(command *cobra.Command) (contactclient.Form, error) {
	flags := command.Flags()
	name, nameErr := flags.GetString(flagNameName)
	if nameErr != nil {
		return contactclient.Form{}, nameErr
	}
	email, emailErr := flags.GetString(flagNameEmail)
	if emailErr != nil {
		return contactclient.Form{}, emailErr
	}
	message, messageErr := flags.GetString(flagNameMessage)
	if messageErr != nil {
		return contactclient.Form{}, messageErr
	}
	return contactclient.Form{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Message: strings.TrimSpace(message),
	}, nil
}

func writeFieldErrors(writer io.Writer, fieldErrors contactclient.FieldErrors) {
	for _, field := range fieldErrors.Fields() {
		fmt.Fprintf(writer, fieldErrorLineFormat, field, fieldErrors[field])
	}
}

func main() {
	application := NewContactApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintln(os.Stderr, commandErr)
		os.Exit(1)
	}
	if executeErr := rootCommand.Execute(); executeErr != nil {
		fmt.Fprintln(os.Stderr, executeErr)
		os.Exit(1)
	}
}
