package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/crmflow/internal/domain/crmsync"
	"github.com/okian/crmflow/internal/domain/model"
)

// fakeZoho serves the token endpoint and the CRM API.
type fakeZoho struct {
	t          *testing.T
	refreshes  atomic.Int32
	reject     atomic.Value // access token the API answers 401 for
	rejectAll  atomic.Bool
	mu         sync.Mutex
	lastQuery  string
	lastMethod string
	lastPath   string
	lastBody   map[string]any
	api        http.HandlerFunc
}

func newFakeZoho(t *testing.T) (*fakeZoho, *httptest.Server) {
	f := &fakeZoho{t: t}
	f.reject.Store("")
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		assert.Equal(t, "cid", r.Form.Get("client_id"))
		n := f.refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok%d","token_type":"Bearer","expires_in":3600}`, n)
	})
	mux.HandleFunc("/crm/v2/", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectAll.Load() || r.Header.Get("Authorization") == "Zoho-oauthtoken "+f.reject.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.lastMethod = r.Method
		f.lastPath = r.URL.Path
		f.lastQuery = r.URL.Query().Get("criteria")
		f.lastBody = nil
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &f.lastBody)
			}
		}
		api := f.api
		f.mu.Unlock()
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeZoho) setAPI(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.api = h
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c, err := New(srv.URL+"/crm/v2", Credentials{
		ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt", AccountsURL: srv.URL,
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New("", Credentials{ClientID: "a"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeZoho(t)
	c := newTestClient(t, srv)

	f.setAPI(jsonReply(http.StatusOK, `{"data":[{"id":"C-1","Email":"a@b.c"}]}`))
	e, err := c.FindContactByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "C-1", e.ID)
	assert.Equal(t, "/crm/v2/Contacts/search", f.lastPath)
	assert.Equal(t, "(Email:equals:a@b.c)", f.lastQuery)

	f.setAPI(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	e, err = c.FindCompanyByName(ctx, "Acme (EU), Ltd")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, `(Account_Name:equals:Acme \(EU\)\, Ltd)`, f.lastQuery)

	e, err = c.FindDealByName(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, e)

	assert.Equal(t, int32(1), f.refreshes.Load(), "token is cached between calls")
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeZoho(t)
	c := newTestClient(t, srv)

	f.setAPI(jsonReply(http.StatusCreated, `{"data":[{"code":"SUCCESS","status":"success","details":{"id":"D-9"}}]}`))
	e, err := c.CreateDeal(ctx, model.CRMPayload{"Deal_Name": "X-CW-20250101", "Stage": "Closed Won"})
	require.NoError(t, err)
	assert.Equal(t, "D-9", e.ID)
	assert.Equal(t, http.MethodPost, f.lastMethod)
	assert.Equal(t, "/crm/v2/Deals", f.lastPath)
	data := f.lastBody["data"].([]any)
	assert.Equal(t, "Closed Won", data[0].(map[string]any)["Stage"])

	f.setAPI(jsonReply(http.StatusOK, `{"data":[{"code":"SUCCESS","status":"success","details":{"id":"D-9"}}]}`))
	_, err = c.UpdateDeal(ctx, "D-9", model.CRMPayload{"Stage": "Renewal"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, f.lastMethod)
	assert.Equal(t, "/crm/v2/Deals/D-9", f.lastPath)

	_, err = c.UpdateDeal(ctx, "", model.CRMPayload{})
	assert.Error(t, err)
}

func TestDuplicateAndErrors(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeZoho(t)
	c := newTestClient(t, srv)

	f.setAPI(jsonReply(http.StatusBadRequest, `{"data":[{"code":"DUPLICATE_DATA","status":"error","message":"duplicate data","details":{"api_name":"Email"}}]}`))
	_, err := c.CreateContact(ctx, model.CRMPayload{"Email": "a@b.c"})
	assert.True(t, errors.Is(err, crmsync.ErrDuplicate))

	f.setAPI(jsonReply(http.StatusBadRequest, `{"code":"INVALID_QUERY","message":"bad criteria"}`))
	_, err = c.FindProductByName(ctx, "P")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_QUERY", apiErr.Code)

	f.setAPI(jsonReply(http.StatusInternalServerError, `{"code":"INTERNAL_ERROR","message":"oops"}`))
	_, err = c.CreateProduct(ctx, model.CRMPayload{"Product_Name": "P"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	f.setAPI(jsonReply(http.StatusOK, `{"data":[{"code":"MANDATORY_NOT_FOUND","status":"error","message":"Last_Name"}]}`))
	_, err = c.CreateContact(ctx, model.CRMPayload{})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "MANDATORY_NOT_FOUND", apiErr.Code)
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeZoho(t)
	c := newTestClient(t, srv)
	f.setAPI(jsonReply(http.StatusOK, `{"data":[{"id":"A-1"}]}`))

	_, err := c.FindCompanyByName(ctx, "Acme")
	require.NoError(t, err)
	require.Equal(t, int32(1), f.refreshes.Load())

	// The cached token is revoked server side.
	f.reject.Store("tok1")
	e, err := c.FindCompanyByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "A-1", e.ID)
	assert.Equal(t, int32(2), f.refreshes.Load())

	// Credentials that keep failing are retried exactly once.
	f.rejectAll.Store(true)
	_, err = c.FindCompanyByName(ctx, "Acme")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(3), f.refreshes.Load())
}
