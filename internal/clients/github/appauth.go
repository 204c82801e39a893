package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// appTokenSource mints GitHub App installation tokens: a short-lived RS256
// app JWT is exchanged for an installation token through the Apps API.
type appTokenSource struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
}

// AppTokenSource builds an oauth2.TokenSource for GitHub App installation
// auth from the app's PEM private key. Installation tokens live about an
// hour; oauth2.ReuseTokenSource caches them until expiry.
func AppTokenSource(appID, installationID int64, privateKeyPath string) (oauth2.TokenSource, error) {
	pemBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	src := &appTokenSource{
		appID:          appID,
		installationID: installationID,
		key:            key,
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}

// appJWT signs the App authentication JWT. GitHub caps expiry at 10 minutes;
// issued-at is backdated 30s to absorb clock skew.
func (s *appTokenSource) appJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(s.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
}

// Token implements oauth2.TokenSource.
func (s *appTokenSource) Token() (*oauth2.Token, error) {
	signed, err := s.appJWT(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to sign app JWT: %w", err)
	}

	hc := &http.Client{
		Transport: &bearerTransport{token: signed},
		Timeout:   30 * time.Second,
	}
	apps := gogithub.NewClient(hc)

	tok, _, err := apps.Apps.CreateInstallationToken(context.Background(), s.installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: tok.GetToken(),
		Expiry:      tok.GetExpiresAt().Time,
	}, nil
}

type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(clone)
}
