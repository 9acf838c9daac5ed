package accounts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherkit/walletgate/core"
)

var testSecret = []byte("test-secret")

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, testSecret, 5*time.Second), srv
}

// requireServiceToken verifies the Authorization header carries a valid
// HS256 token signed with the shared secret.
func requireServiceToken(t *testing.T, r *http.Request) {
	t.Helper()
	header := r.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(header, "Bearer "), "missing bearer token")

	parsed, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, "Bearer "),
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) { return testSecret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	require.NoError(t, err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "walletgate", claims.Issuer)
}

func TestFindByIdentifier(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requireServiceToken(t, r)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/accounts", r.URL.Path)
		assert.Equal(t, "0xabc@wallet.ethereum", r.URL.Query().Get("identifier"))
		json.NewEncoder(w).Encode(map[string]string{"id": "acc-1", "email": "0xabc@wallet.ethereum"})
	})
	defer srv.Close()

	acc, err := c.FindByIdentifier(context.Background(), "0xabc@wallet.ethereum")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "0xabc@wallet.ethereum", acc.Email)
}

func TestFindByIdentifierNotFound(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := c.FindByIdentifier(context.Background(), "missing@wallet.ethereum")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestCreate(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requireServiceToken(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/accounts", r.URL.Path)

		var body createAccountRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0xabc@wallet.ethereum", body.Email)
		assert.Equal(t, "ethereum", body.Metadata["chain"])
		assert.Equal(t, "0xabc", body.Metadata["wallet_address"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "acc-1", "email": body.Email})
	})
	defer srv.Close()

	acc, err := c.Create(context.Background(), core.NewAccount{
		Email:            "0xabc@wallet.ethereum",
		Chain:            core.ChainEthereum,
		Address:          "0xabc",
		CanonicalAddress: "0xAbC",
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
}

// A creation conflict resolves to the existing account via lookup.
func TestCreateConflictResolvesToExisting(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "acc-existing", "email": "0xabc@wallet.ethereum"})
	})
	defer srv.Close()

	acc, err := c.Create(context.Background(), core.NewAccount{Email: "0xabc@wallet.ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "acc-existing", acc.ID)
}

func TestCreateServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.Create(context.Background(), core.NewAccount{Email: "0xabc@wallet.ethereum"})
	assert.ErrorIs(t, err, core.ErrAccountOperation)
}

func TestTouch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requireServiceToken(t, r)
		assert.Equal(t, "/admin/accounts/acc-1/touch", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	assert.NoError(t, c.Touch(context.Background(), "acc-1"))
}

func TestIssueLoginLink(t *testing.T) {
	actionLink := "https://accounts.example.com/magic?token=one-time-tok&redirect=app"
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requireServiceToken(t, r)
		assert.Equal(t, "/admin/magiclinks", r.URL.Path)

		var body loginLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acc-1", body.AccountID)
		assert.Equal(t, "https://app.example.com", body.RedirectURL)

		json.NewEncoder(w).Encode(map[string]string{"action_link": actionLink})
	})
	defer srv.Close()

	link, err := c.IssueLoginLink(context.Background(), "acc-1", "https://app.example.com")
	require.NoError(t, err)

	assert.Equal(t, "one-time-tok", link.Token)
	assert.Equal(t, actionLink, link.MagicLink)
	assert.Equal(t, "https://app.example.com", link.RedirectURL)

	expected := sha256.Sum256([]byte("one-time-tok"))
	assert.Equal(t, hex.EncodeToString(expected[:]), link.TokenHash)
}

func TestIssueLoginLinkNoToken(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"action_link": "https://accounts.example.com/magic"})
	})
	defer srv.Close()

	_, err := c.IssueLoginLink(context.Background(), "acc-1", "")
	assert.ErrorIs(t, err, core.ErrSessionIssuance)
}

func TestIssueLoginLinkUpstreamError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := c.IssueLoginLink(context.Background(), "acc-1", "")
	assert.ErrorIs(t, err, core.ErrSessionIssuance)
}

func TestIssueLoginLinkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed on purpose

	c := NewClient(srv.URL, testSecret, time.Second)
	_, err := c.IssueLoginLink(context.Background(), "acc-1", "")
	assert.ErrorIs(t, err, core.ErrSessionIssuance)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{"plain", "https://x.test/magic?token=abc", "abc", false},
		{"extra params", "https://x.test/magic?redirect=r&token=abc", "abc", false},
		{"no token", "https://x.test/magic?redirect=r", "", true},
		{"empty token", "https://x.test/magic?token=", "", true},
		{"unparseable", "://bad", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := extractToken(tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}
