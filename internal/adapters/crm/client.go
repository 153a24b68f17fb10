// Package crm implements the CRM REST client used by the sync workers.
package crm

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

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okian/crmflow/internal/domain/crmsync"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/pkg/metrics"
)

const (
	DefaultBaseURL     = "https://www.zohoapis.com/crm/v2"
	DefaultAccountsURL = "https://accounts.zoho.com"

	codeDuplicate = "DUPLICATE_DATA"
	maxErrorBody  = 4 << 10
)

// CRM modules per object kind.
const (
	moduleContacts = "Contacts"
	moduleAccounts = "Accounts"
	moduleDeals    = "Deals"
	moduleProducts = "Products"
)

// Client talks to the CRM REST API with OAuth refresh-token auth.
type Client struct {
	base    string
	http    *http.Client
	tokens  *tokenSource
	limiter *rate.Limiter
	finds   singleflight.Group
}

var _ crmsync.CRMClient = (*Client)(nil)

// New builds a Client. baseURL defaults to DefaultBaseURL and the accounts
// URL to DefaultAccountsURL.
func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	if !creds.complete() {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if creds.AccountsURL == "" {
		creds.AccountsURL = DefaultAccountsURL
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = newTokenSource(creds, c.http)
	return c, nil
}

func (c *Client) CreateContact(ctx context.Context, p model.CRMPayload) (*crmsync.Entity, error) {
	return c.create(ctx, "create_contact", moduleContacts, p)
}

func (c *Client) FindContactByEmail(ctx context.Context, email string) (*crmsync.Entity, error) {
	return c.search(ctx, "find_contact", moduleContacts, "Email", email)
}

func (c *Client) CreateCompany(ctx context.Context, p model.CRMPayload) (*crmsync.Entity, error) {
	return c.create(ctx, "create_company", moduleAccounts, p)
}

func (c *Client) FindCompanyByName(ctx context.Context, name string) (*crmsync.Entity, error) {
	return c.search(ctx, "find_company", moduleAccounts, "Account_Name", name)
}

func (c *Client) CreateDeal(ctx context.Context, p model.CRMPayload) (*crmsync.Entity, error) {
	return c.create(ctx, "create_deal", moduleDeals, p)
}

func (c *Client) FindDealByName(ctx context.Context, name string) (*crmsync.Entity, error) {
	return c.search(ctx, "find_deal", moduleDeals, "Deal_Name", name)
}

func (c *Client) UpdateDeal(ctx context.Context, id string, p model.CRMPayload) (*crmsync.Entity, error) {
	if id == "" {
		return nil, errors.New("crm: update deal without id")
	}
	return c.write(ctx, "update_deal", http.MethodPut, moduleDeals+"/"+url.PathEscape(id), p)
}

func (c *Client) CreateProduct(ctx context.Context, p model.CRMPayload) (*crmsync.Entity, error) {
	return c.create(ctx, "create_product", moduleProducts, p)
}

func (c *Client) FindProductByName(ctx context.Context, name string) (*crmsync.Entity, error) {
	return c.search(ctx, "find_product", moduleProducts, "Product_Name", name)
}

func (c *Client) create(ctx context.Context, op, module string, p model.CRMPayload) (*crmsync.Entity, error) {
	return c.write(ctx, op, http.MethodPost, module, p)
}

// writeResult is one element of a create/update response.
type writeResult struct {
	Code    string         `json:"code"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (c *Client) write(ctx context.Context, op, method, path string, p model.CRMPayload) (*crmsync.Entity, error) {
	body, err := json.Marshal(map[string]any{"data": []model.CRMPayload{p}})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	var resp struct {
		Data []writeResult `json:"data"`
	}
	status, err := c.do(ctx, op, method, path, nil, body, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, crmsync.ErrNoRecord
	}
	r := resp.Data[0]
	if r.Code == codeDuplicate {
		return nil, fmt.Errorf("%s: %w", op, crmsync.ErrDuplicate)
	}
	if !strings.EqualFold(r.Status, "success") {
		return nil, &APIError{Status: status, Code: r.Code, Message: r.Message}
	}
	id, _ := r.Details["id"].(string)
	if id == "" {
		return nil, crmsync.ErrNoRecord
	}
	return &crmsync.Entity{ID: id, Fields: r.Details}, nil
}

// search returns the first match or nil. Identical concurrent lookups share
// one request.
func (c *Client) search(ctx context.Context, op, module, field, value string) (*crmsync.Entity, error) {
	if value == "" {
		return nil, nil
	}
	v, err, _ := c.finds.Do(module+"\x00"+field+"\x00"+value, func() (any, error) {
		q := url.Values{"criteria": {"(" + field + ":equals:" + escapeCriteria(value) + ")"}}
		var resp struct {
			Data []map[string]any `json:"data"`
		}
		if _, err := c.do(ctx, op, http.MethodGet, module+"/search", q, nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return (*crmsync.Entity)(nil), nil
		}
		id, _ := resp.Data[0]["id"].(string)
		return &crmsync.Entity{ID: id, Fields: resp.Data[0]}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*crmsync.Entity), nil
}

// escapeCriteria escapes the characters that delimit search criteria.
func escapeCriteria(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, ",", `\,`).Replace(s)
}

// do sends one request, refreshing the token and retrying once on 401.
// A 204 leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body []byte, out any) (int, error) {
	start := time.Now()
	status, err := c.attempt(ctx, method, path, q, body, out)
	if errors.Is(err, ErrUnauthorized) {
		c.tokens.Invalidate()
		status, err = c.attempt(ctx, method, path, q, body, out)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordCRMRequest(op, outcome, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return status, fmt.Errorf("%s: %w", op, err)
	}
	return status, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, q url.Values, body []byte, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	token, err := c.tokens.Token()
	if err != nil {
		return 0, fmt.Errorf("refresh token: %w", err)
	}

	u := c.base + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, ErrUnauthorized
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil
	case resp.StatusCode >= 300 && resp.StatusCode != http.StatusBadRequest:
		return resp.StatusCode, decodeAPIError(resp)
	}

	// Write errors such as duplicates arrive as 400 with a data array.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode == http.StatusBadRequest {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(raw, &envelope) != nil || len(envelope.Data) == 0 {
			return resp.StatusCode, apiErrorFrom(resp.StatusCode, raw)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apiErrorFrom(resp.StatusCode, raw)
}

func apiErrorFrom(status int, raw []byte) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	return &APIError{Status: status, Code: body.Code, Message: body.Message}
}
