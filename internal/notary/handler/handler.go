// Package handler exposes the star notary over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/notary/service"
)

// NotaryHandler handles the validation, registration and lookup routes.
type NotaryHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewNotaryHandler creates a new NotaryHandler.
func NewNotaryHandler(svc *service.Service, logger *zap.Logger) *NotaryHandler {
	return &NotaryHandler{svc: svc, logger: logger}
}

// Register mounts the notary routes on the given router group.
func (h *NotaryHandler) Register(rg gin.IRoutes) {
	rg.POST("/requestValidation", h.RequestValidation)
	rg.POST("/message-signature/validate", h.ValidateSignature)
	rg.POST("/block", h.RegisterStar)
	rg.GET("/block/:height", h.GetBlock)
	rg.GET("/stars/*query", h.SearchStars)
	rg.GET("/chain", h.GetChain)
	rg.GET("/chain/verify", h.VerifyChain)

	// Paths served by the first release of the notary.
	rg.GET("/star/*query", h.SearchStars)
	rg.GET("/getchain", h.GetChain)
}

// writeError maps service and chain errors onto HTTP statuses.
func (h *NotaryHandler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAddress), errors.Is(err, service.ErrInvalidStarData):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoPendingRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
	default:
		h.logger.Error(op, zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// RequestValidation handles POST /requestValidation.
//
// Request body: {"address": "1Abc..."}
func (h *NotaryHandler) RequestValidation(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	ch, err := h.svc.BeginChallenge(req.Address)
	if err != nil {
		h.writeError(c, "begin challenge", err)
		return
	}
	SetValidationRequests(h.svc.Registry().Len())
	c.JSON(http.StatusOK, ch)
}

// ValidateSignature handles POST /message-signature/validate.
//
// Request body: {"address": "1Abc...", "signature": "<base64>"}
func (h *NotaryHandler) ValidateSignature(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and signature are required"})
		return
	}

	res, err := h.svc.SubmitSignature(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		h.writeError(c, "submit signature", err)
		return
	}
	RecordSignatureCheck(res.Status.MessageSignature)
	c.JSON(http.StatusOK, res)
}

// RegisterStar handles POST /block.
//
// Request body: {"address": "1Abc...", "star": {"ra": "...", "dec": "...", "story": "..."}}
func (h *NotaryHandler) RegisterStar(c *gin.Context) {
	var req struct {
		Address string      `json:"address"`
		Star    *chain.Star `json:"star"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Star == nil {
		h.writeError(c, "register star", service.ErrInvalidStarData)
		return
	}

	b, err := h.svc.RegisterStar(c.Request.Context(), req.Address, *req.Star)
	if err != nil {
		h.writeError(c, "register star", err)
		return
	}
	RecordBlockAppended(b.Height)
	SetValidationRequests(h.svc.Registry().Len())
	c.JSON(http.StatusOK, b)
}

// GetBlock handles GET /block/:height.
func (h *NotaryHandler) GetBlock(c *gin.Context) {
	height, err := chain.ParseHeight(c.Param("height"))
	if err != nil {
		h.writeError(c, "get block", err)
		return
	}
	b, err := h.svc.Block(c.Request.Context(), height)
	if err != nil {
		h.writeError(c, "get block", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// SearchStars handles GET /stars/address/:address, GET /stars/hash/:hash and
// the colon forms /stars/address:<address> and /stars/hash:<hash>. The same
// forms are served under /star.
func (h *NotaryHandler) SearchStars(c *gin.Context) {
	kind, value, ok := splitStarQuery(c.Param("query"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown star query"})
		return
	}

	ctx := c.Request.Context()
	switch kind {
	case "address":
		blocks, err := h.svc.StarsByAddress(ctx, value)
		if err != nil {
			h.writeError(c, "stars by address", err)
			return
		}
		c.JSON(http.StatusOK, blocks)
	case "hash":
		b, err := h.svc.BlockByHash(ctx, value)
		if err != nil {
			h.writeError(c, "star by hash", err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// splitStarQuery parses "/address/x", "/address:x", "/hash/x" or "/hash:x".
func splitStarQuery(raw string) (kind, value string, ok bool) {
	raw = strings.TrimPrefix(raw, "/")
	for _, k := range []string{"address", "hash"} {
		rest, found := strings.CutPrefix(raw, k)
		if !found || rest == "" {
			continue
		}
		if rest[0] != '/' && rest[0] != ':' {
			continue
		}
		value = rest[1:]
		if value == "" || strings.Contains(value, "/") {
			return "", "", false
		}
		return k, value, true
	}
	return "", "", false
}

// GetChain handles GET /chain.
func (h *NotaryHandler) GetChain(c *gin.Context) {
	blocks, err := h.svc.Chain(c.Request.Context())
	if err != nil {
		h.writeError(c, "get chain", err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

// VerifyChain handles GET /chain/verify and reports ledger integrity.
func (h *NotaryHandler) VerifyChain(c *gin.Context) {
	err := h.svc.VerifyChain(c.Request.Context())
	if err == nil {
		resp := gin.H{"valid": true}
		if height, ok := h.svc.Height(); ok {
			resp["height"] = height
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	var ie *chain.IntegrityError
	if errors.As(err, &ie) {
		c.JSON(http.StatusOK, gin.H{
			"valid":  false,
			"height": ie.Height,
			"kind":   ie.Kind,
			"error":  ie.Error(),
		})
		return
	}
	h.writeError(c, "verify chain", err)
}
