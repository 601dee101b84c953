// Package handler exposes the bundle discount over HTTP: function evaluation,
// merchant configuration, variant lookup and platform webhooks.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
	"github.com/xenking/bundle-discount/internal/shopify"
)

// maxBodySize bounds request bodies read by handlers.
const maxBodySize = 1 << 20

// Platform headers carrying the shop and its Admin API access token.
const (
	headerShopDomain  = "X-Shopify-Shop-Domain"
	headerAccessToken = "X-Shopify-Access-Token"
)

// ConfigService manages shop configurations.
type ConfigService interface {
	Get(ctx context.Context, shop string) (*shopconfig.Config, error)
	Save(ctx context.Context, reg shopconfig.Registrar, shop string, req shopconfig.SaveRequest) (*shopconfig.Config, error)
	Uninstall(ctx context.Context, shop string) error
}

// Platform is the Admin API of a single shop.
type Platform interface {
	shopconfig.Registrar
	VariantsByIDs(ctx context.Context, ids []string) ([]shopify.Variant, error)
	SearchVariants(ctx context.Context, query string) ([]shopify.Variant, error)
}

// PlatformFunc returns the Platform of shop authenticated with token.
type PlatformFunc func(shop, token string) Platform

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// WebhookSecret verifies X-Shopify-Hmac-Sha256 on webhook deliveries.
	WebhookSecret string
}

// Handler serves the bundle discount HTTP API.
type Handler struct {
	configs       ConfigService
	platform      PlatformFunc
	metrics       *Metrics
	webhookSecret []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	configs ConfigService,
	platform PlatformFunc,
	metrics *Metrics,
) *Handler {
	return &Handler{
		configs:       configs,
		platform:      platform,
		metrics:       metrics,
		webhookSecret: []byte(cfg.WebhookSecret),
	}
}

// Register adds the API routes to mux. Routes under /api are wrapped with
// auth; webhooks authenticate by signature.
func (h *Handler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}
	api("POST /api/evaluate", h.Evaluate)
	api("GET /api/config", h.GetConfig)
	api("PUT /api/config", h.PutConfig)
	api("GET /api/config/variants", h.ConfigVariants)
	api("POST /api/config/preview", h.Preview)
	api("GET /api/variants", h.SearchVariants)
	mux.HandleFunc("POST /webhooks", h.Webhook)
}

type errorResponse struct {
	Error  string              `json:"error,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already sent; a failed write means the client went away.
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err with the request logger and responds with 500.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

// shopFrom returns the shop domain of the request, or responds with 400.
func shopFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	shop := strings.TrimSpace(r.Header.Get(headerShopDomain))
	if shop == "" {
		writeError(w, http.StatusBadRequest, "missing "+headerShopDomain+" header")
		return "", false
	}
	return shop, true
}

// platformFrom returns the Platform of the request shop, or responds with an
// error when the shop or its access token is missing.
func (h *Handler) platformFrom(w http.ResponseWriter, r *http.Request) (string, Platform, bool) {
	shop, ok := shopFrom(w, r)
	if !ok {
		return "", nil, false
	}
	token := strings.TrimSpace(r.Header.Get(headerAccessToken))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing "+headerAccessToken+" header")
		return "", nil, false
	}
	return shop, h.platform(shop, token), true
}
