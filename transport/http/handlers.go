package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge handles the challenge request for a chain
func (h *AuthHandlers) Challenge(c *gin.Context) {
	chain, ok := chainParam(c)
	if !ok {
		return
	}

	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.Challenge(c.Request.Context(), chain, req.WalletAddress)
	if err != nil {
		writeError(c, chain, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     challenge.Nonce,
		"issuedAt":  challenge.IssuedAt.UTC().Format(time.RFC3339),
		"expiresAt": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Login handles the signed-message login request for a chain
func (h *AuthHandlers) Login(c *gin.Context) {
	chain, ok := chainParam(c)
	if !ok {
		return
	}

	var req struct {
		Message       string `json:"message" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), service.AuthRequest{
		Chain:         chain,
		Message:       req.Message,
		Signature:     req.Signature,
		WalletAddress: req.WalletAddress,
		ClientIP:      c.ClientIP(),
		Host:          c.Request.Host,
	})
	if err != nil {
		writeError(c, chain, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"userId":        result.AccountID,
		"walletAddress": result.WalletAddress,
		"email":         result.Email,
		"tokenHash":     result.TokenHash,
		"magicLink":     result.MagicLink,
		"redirectUrl":   result.RedirectURL,
	})
}

func chainParam(c *gin.Context) (core.Chain, bool) {
	chain, err := core.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unsupported chain"})
		return "", false
	}
	return chain, true
}

// writeError maps service errors to HTTP responses. The response bodies
// deliberately do not distinguish a missing challenge from a wrong nonce;
// logs carry the detail instead.
func writeError(c *gin.Context, chain core.Chain, err error) {
	var rateErr *core.RateLimitError
	if errors.As(err, &rateErr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "Too many authentication attempts",
			"blockedUntil": rateErr.BlockedUntil.UTC().Format(time.RFC3339),
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrInvalidInput):
		msg := "Invalid request"
		if chain == core.ChainEthereum {
			msg = "Invalid Ethereum address format"
		} else if chain == core.ChainSolana {
			msg = "Invalid Solana address format"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case errors.Is(err, core.ErrMalformedMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed authentication message"})
	case errors.Is(err, core.ErrChallengeExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Challenge expired"})
	case errors.Is(err, core.ErrNoChallenge), errors.Is(err, core.ErrChallengeConsumed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Challenge not found, request a new one"})
	case errors.Is(err, core.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, core.ErrSessionIssuance):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
