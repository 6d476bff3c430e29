package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/catalog"
	"github.com/MarkoPoloResearchLab/folio/internal/mailer"
	"github.com/MarkoPoloResearchLab/folio/internal/metrics"
	"github.com/MarkoPoloResearchLab/folio/internal/storage"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the portfolio API server"
	commandLongDescription        = "Serve the portfolio catalog and accept contact submissions that are stored and mailed to the site owner"
	missingConfigurationMessage   = "missing required configuration"
	loggerCreationErrorMessage    = "logger"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	environmentFileName           = ".env"
	invalidSMTPPortMessage        = "invalid smtp port"

	logEventListening           = "listening"
	logEventShuttingDown        = "shutting_down"
	logEventMailerVerified      = "mailer_verified"
	logEventMailerVerifyFailed  = "mailer_verify_failed"
	logEventMetricsRegistration = "database_metrics_unavailable"
	logFieldAddress             = "addr"
	logFieldTransport           = "transport"

	flagNameApplicationAddress = "app-addr"
	flagNameDatabaseDriver     = "db-driver"
	flagNameDatabaseDataSource = "db-dsn"
	flagNameAllowedOrigins     = "allowed-origins"
	flagNameOwnerEmail         = "owner-email"
	flagNameMailTransport      = "mail-transport"
	flagNameMailTimeout        = "mail-timeout"
	flagNameSMTPHost           = "smtp-host"
	flagNameSMTPPort           = "smtp-port"
	flagNameSMTPTLS            = "smtp-tls"
	flagNameSMTPUsername       = "smtp-username"
	flagNameSMTPPassword       = "smtp-password"
	flagNameOAuthClientID      = "oauth-client-id"
	flagNameOAuthClientSecret  = "oauth-client-secret"
	flagNameOAuthRefreshToken  = "oauth-refresh-token"
	flagNameOAuthTokenURL      = "oauth-token-url"
	flagNameMailAPIURL         = "mail-api-url"
	flagNameMailAPIKey         = "mail-api-key"
	flagNameUploadsDirectory   = "uploads-dir"
	flagNameCatalogFile        = "catalog-file"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAllowedOrigins     = "ALLOWED_ORIGINS"
	environmentKeyOwnerEmail         = "OWNER_EMAIL"
	environmentKeyMailTransport      = "MAIL_TRANSPORT"
	environmentKeyMailTimeout        = "MAIL_TIMEOUT"
	environmentKeySMTPHost           = "SMTP_HOST"
	environmentKeySMTPPort           = "SMTP_PORT"
	environmentKeySMTPTLS            = "SMTP_TLS"
	environmentKeySMTPUsername       = "SMTP_USERNAME"
	environmentKeySMTPPassword       = "SMTP_PASSWORD"
	environmentKeyOAuthClientID      = "OAUTH_CLIENT_ID"
	environmentKeyOAuthClientSecret  = "OAUTH_CLIENT_SECRET"
	environmentKeyOAuthRefreshToken  = "OAUTH_REFRESH_TOKEN"
	environmentKeyOAuthTokenURL      = "OAUTH_TOKEN_URL"
	environmentKeyMailAPIURL         = "MAIL_API_URL"
	environmentKeyMailAPIKey         = "MAIL_API_KEY"
	environmentKeyUploadsDirectory   = "UPLOADS_DIR"
	environmentKeyCatalogFile        = "CATALOG_FILE"

	defaultApplicationAddress = ":5000"
	defaultAllowedOrigins     = "http://localhost:3000"
	defaultSMTPHost           = "smtp.gmail.com"
	defaultSMTPPort           = "587"
	defaultUploadsDirectory   = "uploads"
	defaultMailTimeout        = "30s"

	readHeaderTimeout    = 5 * time.Second
	readTimeout          = 15 * time.Second
	writeTimeout         = 45 * time.Second
	idleTimeout          = 60 * time.Second
	shutdownTimeout      = 10 * time.Second
	mailerVerifyTimeout  = 30 * time.Second
	uploadsDirectoryMode = 0o755
)

type configurationFlag struct {
	name           string
	environmentKey string
	defaultValue   string
	usage          string
}

var configurationFlags = []configurationFlag{
	{name: flagNameApplicationAddress, environmentKey: environmentKeyApplicationAddress, defaultValue: defaultApplicationAddress, usage: "address for the HTTP server to listen on"},
	{name: flagNameDatabaseDriver, environmentKey: environmentKeyDatabaseDriver, defaultValue: storage.DriverNameSQLite, usage: "database driver (sqlite or postgres)"},
	{name: flagNameDatabaseDataSource, environmentKey: environmentKeyDatabaseDataSource, usage: "database connection string"},
	{name: flagNameAllowedOrigins, environmentKey: environmentKeyAllowedOrigins, defaultValue: defaultAllowedOrigins, usage: "comma separated browser origins allowed to call the API"},
	{name: flagNameOwnerEmail, environmentKey: environmentKeyOwnerEmail, usage: "address that receives contact notifications"},
	{name: flagNameMailTransport, environmentKey: environmentKeyMailTransport, defaultValue: mailer.TransportSMTP, usage: "mail transport (smtp, oauth2, http or log)"},
	{name: flagNameMailTimeout, environmentKey: environmentKeyMailTimeout, defaultValue: defaultMailTimeout, usage: "upper bound for a single mail delivery"},
	{name: flagNameSMTPHost, environmentKey: environmentKeySMTPHost, defaultValue: defaultSMTPHost, usage: "SMTP server host"},
	{name: flagNameSMTPPort, environmentKey: environmentKeySMTPPort, defaultValue: defaultSMTPPort, usage: "SMTP server port"},
	{name: flagNameSMTPTLS, environmentKey: environmentKeySMTPTLS, defaultValue: mailer.TLSModeStartTLS, usage: "SMTP TLS mode (starttls, ssl or none)"},
	{name: flagNameSMTPUsername, environmentKey: environmentKeySMTPUsername, usage: "SMTP account name"},
	{name: flagNameSMTPPassword, environmentKey: environmentKeySMTPPassword, usage: "SMTP password or app password"},
	{name: flagNameOAuthClientID, environmentKey: environmentKeyOAuthClientID, usage: "OAuth2 client id for XOAUTH2"},
	{name: flagNameOAuthClientSecret, environmentKey: environmentKeyOAuthClientSecret, usage: "OAuth2 client secret for XOAUTH2"},
	{name: flagNameOAuthRefreshToken, environmentKey: environmentKeyOAuthRefreshToken, usage: "OAuth2 refresh token for XOAUTH2"},
	{name: flagNameOAuthTokenURL, environmentKey: environmentKeyOAuthTokenURL, defaultValue: mailer.DefaultTokenURL, usage: "OAuth2 token endpoint"},
	{name: flagNameMailAPIURL, environmentKey: environmentKeyMailAPIURL, defaultValue: mailer.DefaultAPIEndpoint, usage: "transactional email API endpoint"},
	{name: flagNameMailAPIKey, environmentKey: environmentKeyMailAPIKey, usage: "transactional email API key"},
	{name: flagNameUploadsDirectory, environmentKey: environmentKeyUploadsDirectory, defaultValue: defaultUploadsDirectory, usage: "directory served under /uploads"},
	{name: flagNameCatalogFile, environmentKey: environmentKeyCatalogFile, usage: "optional YAML file with projects and skills to seed"},
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress string
	Database           storage.Config
	AllowedOrigins     []string
	OwnerEmail         string
	Mail               mailer.Config
	UploadsDirectory   string
	CatalogFile        string
}

// DatabaseOpener opens a database connection for the provided configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// SenderFactory builds the mail sender for the configured transport.
type SenderFactory func(mailer.Config, *zap.Logger) (mailer.Sender, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	senderFactory       SenderFactory
	loggerFactory       func() (*zap.Logger, error)
	shutdownSignals     []os.Signal
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
		senderFactory:       mailer.New,
		loggerFactory:       func() (*zap.Logger, error) { return zap.NewProduction() },
		shutdownSignals:     []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// WithSenderFactory overrides how the mail sender is built.
func (application *ServerApplication) WithSenderFactory(senderFactory SenderFactory) *ServerApplication {
	application.senderFactory = senderFactory
	return application
}

// WithLogger makes the application log to logger instead of a production logger.
func (application *ServerApplication) WithLogger(logger *zap.Logger) *ServerApplication {
	application.loggerFactory = func() (*zap.Logger, error) { return logger, nil }
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	commandFlags := command.Flags()
	for _, definition := range configurationFlags {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.String(definition.name, definition.defaultValue, definition.usage)
	}
	application.configurationLoader.AutomaticEnv()

	for _, definition := range configurationFlags {
		if bindErr := application.bindFlag(commandFlags, definition.environmentKey, definition.name); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, definition.environmentKey, definition.name); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSource); markErr != nil {
		return markErr
	}
	if markErr := command.MarkFlagRequired(flagNameOwnerEmail); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() (ServerConfig, error) {
	loader := application.configurationLoader
	serverConfig := ServerConfig{
		ApplicationAddress: strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		Database: storage.Config{
			DriverName:     loader.GetString(environmentKeyDatabaseDriver),
			DataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		},
		AllowedOrigins:   splitList(loader.GetString(environmentKeyAllowedOrigins)),
		OwnerEmail:       strings.TrimSpace(loader.GetString(environmentKeyOwnerEmail)),
		UploadsDirectory: strings.TrimSpace(loader.GetString(environmentKeyUploadsDirectory)),
		CatalogFile:      strings.TrimSpace(loader.GetString(environmentKeyCatalogFile)),
		Mail: mailer.Config{
			Transport: loader.GetString(environmentKeyMailTransport),
			SMTP: mailer.SMTPConfig{
				Host:     loader.GetString(environmentKeySMTPHost),
				TLSMode:  loader.GetString(environmentKeySMTPTLS),
				Username: loader.GetString(environmentKeySMTPUsername),
				Password: loader.GetString(environmentKeySMTPPassword),
			},
			OAuth2: mailer.OAuth2Config{
				ClientID:     loader.GetString(environmentKeyOAuthClientID),
				ClientSecret: loader.GetString(environmentKeyOAuthClientSecret),
				RefreshToken: loader.GetString(environmentKeyOAuthRefreshToken),
				TokenURL:     loader.GetString(environmentKeyOAuthTokenURL),
			},
			HTTP: mailer.HTTPConfig{
				Endpoint: loader.GetString(environmentKeyMailAPIURL),
				APIKey:   loader.GetString(environmentKeyMailAPIKey),
			},
			OperationTimeout: loader.GetDuration(environmentKeyMailTimeout),
		},
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return ServerConfig{}, validationErr
	}

	rawPort := strings.TrimSpace(loader.GetString(environmentKeySMTPPort))
	port, portErr := strconv.Atoi(rawPort)
	if portErr != nil || port <= 0 {
		return ServerConfig{}, fmt.Errorf("%s: %q", invalidSMTPPortMessage, rawPort)
	}
	serverConfig.Mail.SMTP.Port = port
	return serverConfig, nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.Database.DataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSource)
	}

	if configuration.OwnerEmail == "" {
		missingParameters = append(missingParameters, flagNameOwnerEmail)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configErr := application.loadServerConfig()
	if configErr != nil {
		return configErr
	}

	logger, loggerErr := application.loggerFactory()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	runContext, stopSignals := signal.NotifyContext(command.Context(), application.shutdownSignals...)
	defer stopSignals()

	httpServer, database, prepareErr := application.prepare(runContext, serverConfig, logger)
	if prepareErr != nil {
		return prepareErr
	}
	defer func() {
		_ = storage.Close(database)
	}()

	return serve(runContext, httpServer, logger)
}

// prepare performs every startup step up to, but not including, accepting connections.
func (application *ServerApplication) prepare(ctx context.Context, serverConfig ServerConfig, logger *zap.Logger) (*http.Server, *gorm.DB, error) {
	database, databaseErr := application.databaseOpener(serverConfig.Database)
	if databaseErr != nil {
		return nil, nil, fmt.Errorf("open database: %w", databaseErr)
	}

	startupErr := func() error {
		if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
			return fmt.Errorf("migrate database: %w", migrateErr)
		}
		if sqlDatabase, sqlErr := database.DB(); sqlErr == nil {
			if registerErr := metrics.RegisterDatabaseStats(sqlDatabase); registerErr != nil {
				logger.Warn(logEventMetricsRegistration, zap.Error(registerErr))
			}
		}
		if serverConfig.CatalogFile != "" {
			catalogFile, loadErr := catalog.Load(serverConfig.CatalogFile)
			if loadErr != nil {
				return loadErr
			}
			if _, seedErr := catalog.Seed(ctx, database, logger, catalogFile); seedErr != nil {
				return fmt.Errorf("seed catalog: %w", seedErr)
			}
		}
		if mkdirErr := os.MkdirAll(serverConfig.UploadsDirectory, uploadsDirectoryMode); mkdirErr != nil {
			return fmt.Errorf("create uploads directory: %w", mkdirErr)
		}
		return nil
	}()
	if startupErr != nil {
		_ = storage.Close(database)
		return nil, nil, startupErr
	}

	sender, senderErr := application.senderFactory(serverConfig.Mail, logger)
	if senderErr != nil {
		_ = storage.Close(database)
		return nil, nil, fmt.Errorf("configure mail transport: %w", senderErr)
	}
	transport := normalizedTransport(serverConfig.Mail.Transport)
	if verifier, canVerify := sender.(mailer.Verifier); canVerify {
		go verifySender(ctx, verifier, transport, logger)
	}

	router, routerErr := buildRouter(routerDependencies{
		database:         database,
		logger:           logger,
		sender:           metrics.InstrumentSender(transport, sender),
		ownerAddress:     serverConfig.OwnerEmail,
		allowedOrigins:   serverConfig.AllowedOrigins,
		uploadsDirectory: serverConfig.UploadsDirectory,
	})
	if routerErr != nil {
		_ = storage.Close(database)
		return nil, nil, routerErr
	}

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return httpServer, database, nil
}

func serve(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error {
	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, httpServer.Addr))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(logEventShuttingDown)
	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
		return shutdownErr
	}
	if serveErr := <-serveErrors; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

func verifySender(ctx context.Context, verifier mailer.Verifier, transport string, logger *zap.Logger) {
	verifyContext, cancel := context.WithTimeout(ctx, mailerVerifyTimeout)
	defer cancel()
	if verifyErr := verifier.Verify(verifyContext); verifyErr != nil {
		logger.Warn(logEventMailerVerifyFailed, zap.String(logFieldTransport, transport), zap.Error(verifyErr))
		return
	}
	logger.Info(logEventMailerVerified, zap.String(logFieldTransport, transport))
}

func normalizedTransport(transport string) string {
	normalized := strings.ToLower(strings.TrimSpace(transport))
	if normalized == "" {
		return mailer.TransportSMTP
	}
	return normalized
}

func splitList(rawValue string) []string {
	values := make([]string, 0)
	for _, part := range strings.Split(rawValue, ",") {
		if value := strings.TrimSpace(part); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func loadEnvironmentFile(path string) error {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil
		}
		return statErr
	}
	return godotenv.Load(path)
}

func main() {
	if environmentErr := loadEnvironmentFile(environmentFileName); environmentErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", environmentConfigurationError, environmentErr)
		os.Exit(1)
	}

	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
