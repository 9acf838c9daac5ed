// Package accounts talks to the external account/session system. It is the
// only place that knows the shape of the admin API and of the magic-link
// URLs it returns.
package accounts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

const serviceTokenTTL = time.Minute

// Client implements ports.AccountGateway over the account system's REST
// admin API, authenticating each call with a short-lived HS256 service
// token.
type Client struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
}

func NewClient(baseURL string, secret []byte, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type accountPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type createAccountRequest struct {
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}

type loginLinkRequest struct {
	AccountID   string `json:"account_id"`
	RedirectURL string `json:"redirect_url"`
}

type loginLinkResponse struct {
	ActionLink string `json:"action_link"`
}

func (c *Client) FindByIdentifier(ctx context.Context, identifier string) (*core.Account, error) {
	endpoint := c.baseURL + "/admin/accounts?identifier=" + url.QueryEscape(identifier)

	var payload accountPayload
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &payload)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &core.Account{ID: payload.ID, Email: payload.Email}, nil
	case http.StatusNotFound:
		return nil, core.ErrAccountNotFound
	default:
		return nil, fmt.Errorf("account lookup returned status %d: %w", status, core.ErrAccountOperation)
	}
}

// Create registers an account under the wallet's synthetic identifier. A
// conflict means another request won the creation race; the existing
// account is fetched and returned instead.
func (c *Client) Create(ctx context.Context, acc core.NewAccount) (*core.Account, error) {
	body := createAccountRequest{
		Email: acc.Email,
		Metadata: map[string]string{
			"chain":             string(acc.Chain),
			"wallet_address":    acc.Address,
			"canonical_address": acc.CanonicalAddress,
		},
	}

	var payload accountPayload
	status, err := c.do(ctx, http.MethodPost, c.baseURL+"/admin/accounts", body, &payload)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		return &core.Account{ID: payload.ID, Email: payload.Email}, nil
	case http.StatusConflict:
		return c.FindByIdentifier(ctx, acc.Email)
	default:
		return nil, fmt.Errorf("account creation returned status %d: %w", status, core.ErrAccountOperation)
	}
}

func (c *Client) Touch(ctx context.Context, accountID string) error {
	endpoint := c.baseURL + "/admin/accounts/" + url.PathEscape(accountID) + "/touch"
	status, err := c.do(ctx, http.MethodPost, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("account touch returned status %d: %w", status, core.ErrAccountOperation)
	}
	return nil
}

// IssueLoginLink asks for a one-time magic link and extracts the bootstrap
// token from its query string. The token itself never leaves this adapter
// unhashed except inside the returned LoginLink.
func (c *Client) IssueLoginLink(ctx context.Context, accountID, redirectURL string) (*core.LoginLink, error) {
	body := loginLinkRequest{AccountID: accountID, RedirectURL: redirectURL}

	var payload loginLinkResponse
	status, err := c.do(ctx, http.MethodPost, c.baseURL+"/admin/magiclinks", body, &payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), core.ErrSessionIssuance)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("magic link request returned status %d: %w", status, core.ErrSessionIssuance)
	}

	token, err := extractToken(payload.ActionLink)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), core.ErrSessionIssuance)
	}

	hash := sha256.Sum256([]byte(token))
	return &core.LoginLink{
		Token:       token,
		TokenHash:   hex.EncodeToString(hash[:]),
		MagicLink:   payload.ActionLink,
		RedirectURL: redirectURL,
	}, nil
}

// extractToken pulls the one-time token out of the action link query
// string. The account system names the parameter "token".
func extractToken(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("failed to parse action link")
	}
	token := u.Query().Get("token")
	if token == "" {
		return "", fmt.Errorf("action link carries no token")
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	token, err := c.serviceToken()
	if err != nil {
		return 0, fmt.Errorf("failed to sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("account system unreachable: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// serviceToken mints the short-lived HS256 token the admin API expects.
func (c *Client) serviceToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "walletgate",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

var _ ports.AccountGateway = (*Client)(nil)
