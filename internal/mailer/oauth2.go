package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	xoauth2Mechanism = "XOAUTH2"

	// DefaultTokenURL is the Google token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
)

var errEmptyAccessToken = errors.New("token endpoint returned an empty access token")

// OAuth2Config holds the long-lived refresh credentials. A short-lived access token is
// minted from them for every send.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

func newOAuth2Sender(smtpConfiguration SMTPConfig, oauthConfiguration OAuth2Config, timeout time.Duration) (*smtpSender, error) {
	normalized, err := normalizeSMTPConfig(TransportOAuth2, smtpConfiguration)
	if err != nil {
		return nil, err
	}
	if normalized.Username == "" {
		return nil, missingSetting(TransportOAuth2, "username")
	}
	if strings.TrimSpace(oauthConfiguration.ClientID) == "" {
		return nil, missingSetting(TransportOAuth2, "client id")
	}
	if strings.TrimSpace(oauthConfiguration.ClientSecret) == "" {
		return nil, missingSetting(TransportOAuth2, "client secret")
	}
	if strings.TrimSpace(oauthConfiguration.RefreshToken) == "" {
		return nil, missingSetting(TransportOAuth2, "refresh token")
	}

	tokenMinter := newAccessTokenMinter(oauthConfiguration)
	sender := &smtpSender{
		transport:     TransportOAuth2,
		configuration: normalized,
		timeout:       timeout,
	}
	sender.authenticate = func(ctx context.Context) (smtp.Auth, error) {
		accessToken, err := tokenMinter.mint(ctx)
		if err != nil {
			return nil, err
		}
		return &xoauth2Auth{username: normalized.Username, accessToken: accessToken}, nil
	}
	return sender, nil
}

type accessTokenMinter struct {
	configuration *oauth2.Config
	refreshToken  string
}

func newAccessTokenMinter(configuration OAuth2Config) *accessTokenMinter {
	tokenURL := strings.TrimSpace(configuration.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &accessTokenMinter{
		configuration: &oauth2.Config{
			ClientID:     strings.TrimSpace(configuration.ClientID),
			ClientSecret: strings.TrimSpace(configuration.ClientSecret),
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		refreshToken: strings.TrimSpace(configuration.RefreshToken),
	}
}

// mint exchanges the refresh token for a fresh access token.
func (minter *accessTokenMinter) mint(ctx context.Context) (string, error) {
	tokenSource := minter.configuration.TokenSource(ctx, &oauth2.Token{RefreshToken: minter.refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", errEmptyAccessToken
	}
	return token.AccessToken, nil
}

// xoauth2Auth implements the SASL XOAUTH2 mechanism used by Gmail and Outlook.
type xoauth2Auth struct {
	username    string
	accessToken string
}

func (auth *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	response := "user=" + auth.username + "\x01auth=Bearer " + auth.accessToken + "\x01\x01"
	return xoauth2Mechanism, []byte(response), nil
}

func (auth *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server sends a JSON error challenge; an empty reply makes it finish with a failure code.
		return []byte{}, nil
	}
	return nil, nil
}
