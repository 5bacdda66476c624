package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/core/staging"
	"github.com/vietddude/stager/internal/infra/chain"
	"github.com/vietddude/stager/internal/ops/metrics"
)

// Store is the part of the staging store the handlers use.
type Store interface {
	List(key domain.WalletKey) []domain.StagedTransaction
	Propose(ctx context.Context, gw chain.Gateway, key domain.WalletKey, candidate domain.StagedTransaction) ([]domain.StagedTransaction, error)
}

// Gateways resolves the gateway for a chain.
type Gateways interface {
	Gateway(chainID domain.ChainID) (chain.Gateway, error)
}

// Handler serves the staging endpoints.
type Handler struct {
	store          Store
	gateways       Gateways
	requestTimeout time.Duration
	log            *slog.Logger
}

// NewHandler creates a handler. requestTimeout bounds each POST, waiting
// for the wallet lock included; zero means no bound beyond the client's.
func NewHandler(store Store, gateways Gateways, requestTimeout time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:          store,
		gateways:       gateways,
		requestTimeout: requestTimeout,
		log:            log.With("component", "api"),
	}
}

// ListStaged returns the wallet's queue, or an empty array.
func (h *Handler) ListStaged(c *gin.Context) {
	key, err := walletKey(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, ErrInvalidRequest.Error(), err)
		return
	}
	c.JSON(http.StatusOK, toResponse(h.store.List(key)))
}

// ProposeStaged admits or upgrades one staged transaction and returns the
// wallet's full queue.
func (h *Handler) ProposeStaged(c *gin.Context) {
	key, err := walletKey(c)
	if err != nil {
		h.reject(c, "", err)
		return
	}
	chainLabel := key.ChainID.String()

	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, chainLabel, invalid("malformed body: %v", err))
		return
	}
	candidate, err := req.Staged()
	if err != nil {
		h.reject(c, chainLabel, err)
		return
	}

	gw, err := h.gateways.Gateway(key.ChainID)
	if err != nil {
		h.reject(c, chainLabel, err)
		return
	}

	ctx := c.Request.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	queue, err := h.store.Propose(ctx, gw, key, candidate)
	if err != nil {
		h.reject(c, chainLabel, err)
		return
	}

	metrics.ProposalsTotal.WithLabelValues(chainLabel, "accepted").Inc()
	c.JSON(http.StatusOK, toResponse(queue))
}

func (h *Handler) reject(c *gin.Context, chainLabel string, err error) {
	status, reason := classify(err)
	metrics.ProposalsTotal.WithLabelValues(chainLabel, outcomeLabel(reason)).Inc()

	if status >= http.StatusInternalServerError {
		// Upstream errors can carry provider URLs; keep them in the log only.
		h.log.Warn("Proposal failed",
			"request_id", c.GetString(requestIDKey),
			"path", c.Request.URL.Path,
			"error", err,
		)
		c.AbortWithStatusJSON(status, ErrorResponse{Error: reason})
		return
	}
	if staging.IsRejection(err) {
		h.log.Debug("Proposal rejected", "request_id", c.GetString(requestIDKey), "reason", reason)
	}
	writeError(c, status, reason, err)
}

// classify maps an admission outcome to its HTTP status and stable reason.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, ErrInvalidRequest.Error()
	case errors.Is(err, chain.ErrUnknownNetwork):
		return http.StatusBadRequest, chain.ErrUnknownNetwork.Error()
	case errors.Is(err, staging.ErrStaleNonce):
		return http.StatusBadRequest, staging.ErrStaleNonce.Error()
	case errors.Is(err, staging.ErrNonceGap):
		return http.StatusBadRequest, staging.ErrNonceGap.Error()
	case errors.Is(err, staging.ErrSignatureCountNotIncreased):
		return http.StatusBadRequest, staging.ErrSignatureCountNotIncreased.Error()
	case errors.Is(err, staging.ErrInvalidSignatures):
		return http.StatusBadRequest, staging.ErrInvalidSignatures.Error()
	case errors.Is(err, chain.ErrNotWallet):
		return http.StatusBadRequest, chain.ErrNotWallet.Error()
	default:
		return http.StatusServiceUnavailable, chain.ErrChainUnavailable.Error()
	}
}

func outcomeLabel(reason string) string {
	return strings.ReplaceAll(reason, " ", "_")
}

func walletKey(c *gin.Context) (domain.WalletKey, error) {
	chainID, err := domain.ParseChainID(c.Param("chainId"))
	if err != nil {
		return domain.WalletKey{}, invalid("chain id: %v", err)
	}
	key, err := domain.NewWalletKey(chainID, c.Param("safeAddress"))
	if err != nil {
		return domain.WalletKey{}, invalid("safe address: %v", err)
	}
	return key, nil
}

func writeError(c *gin.Context, status int, reason string, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: reason, Message: err.Error()})
}
