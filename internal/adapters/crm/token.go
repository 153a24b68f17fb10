package crm

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/okian/crmflow/pkg/metrics"
)

// Credentials are the OAuth refresh-token grant inputs.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// AccountsURL is the OAuth server, e.g. https://accounts.zoho.com.
	AccountsURL string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// tokenSource caches the access token and refreshes it on expiry or after
// Invalidate. Concurrent callers share one refresh.
type tokenSource struct {
	mu   sync.Mutex
	conf *oauth2.Config
	ctx  context.Context
	rt   string
	src  oauth2.TokenSource
}

func newTokenSource(creds Credentials, hc *http.Client) *tokenSource {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(creds.AccountsURL, "/") + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ts := &tokenSource{
		conf: conf,
		ctx:  context.WithValue(context.Background(), oauth2.HTTPClient, hc),
		rt:   creds.RefreshToken,
	}
	ts.reset()
	return ts
}

func (t *tokenSource) reset() {
	base := t.conf.TokenSource(t.ctx, &oauth2.Token{RefreshToken: t.rt})
	t.src = oauth2.ReuseTokenSource(nil, countingSource{base})
}

// Token returns a valid access token.
func (t *tokenSource) Token() (string, error) {
	t.mu.Lock()
	src := t.src
	t.mu.Unlock()
	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (t *tokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// countingSource records every refresh attempt.
type countingSource struct {
	base oauth2.TokenSource
}

func (c countingSource) Token() (*oauth2.Token, error) {
	tok, err := c.base.Token()
	if err != nil {
		metrics.RecordCRMTokenRefresh("error")
		return nil, err
	}
	metrics.RecordCRMTokenRefresh("ok")
	return tok, nil
}
