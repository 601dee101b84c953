package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
	"github.com/xenking/bundle-discount/internal/shopify"
)

type configResponse struct {
	ShopDomain     string          `json:"shopDomain"`
	BundleSize     int             `json:"bundleSize"`
	BundlePrice    decimal.Decimal `json:"bundlePrice"`
	Label          string          `json:"label"`
	VariantIDs     []string        `json:"variantIds"`
	DiscountNodeID string          `json:"discountNodeId,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toConfigResponse(c *shopconfig.Config) configResponse {
	variants := c.VariantIDs
	if variants == nil {
		variants = []string{}
	}
	return configResponse{
		ShopDomain:     c.ShopDomain,
		BundleSize:     c.BundleSize,
		BundlePrice:    c.BundlePrice,
		Label:          c.Label,
		VariantIDs:     variants,
		DiscountNodeID: c.DiscountNodeID,
		UpdatedAt:      c.UpdatedAt,
	}
}

type variantsResponse struct {
	Variants []shopify.Variant `json:"variants"`
}

// GetConfig returns the saved configuration of the shop.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopFrom(w, r)
	if !ok {
		return
	}

	cfg, err := h.configs.Get(r.Context(), shop)
	if err != nil {
		if errors.Is(err, shopconfig.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shop has no bundle configuration")
			return
		}
		internalError(w, r, "Get config", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigResponse(cfg))
}

// PutConfig validates and saves the configuration of the shop, registering
// or updating its automatic discount.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	shop, platform, ok := h.platformFrom(w, r)
	if !ok {
		return
	}

	var req shopconfig.SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Errors: map[string][]string{"body": {"must be a JSON object with bundleSize, bundlePrice, label and variantIds"}},
		})
		return
	}

	cfg, err := h.configs.Save(r.Context(), platform, shop, req)
	if err != nil {
		var (
			verr *shopconfig.ValidationError
			rerr *shopconfig.RegistrationError
		)
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: verr.Fields})
		case errors.As(err, &rerr):
			zctx.From(r.Context()).Warn("Discount registration failed",
				zap.String("shop", shop),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			internalError(w, r, "Save config", err)
		}
		return
	}

	zctx.From(r.Context()).Info("Config saved",
		zap.String("shop", shop),
		zap.String("discount_node_id", cfg.DiscountNodeID),
	)
	writeJSON(w, http.StatusOK, toConfigResponse(cfg))
}

// ConfigVariants resolves the variants selected in the saved configuration.
// A shop without configuration has no selected variants.
func (h *Handler) ConfigVariants(w http.ResponseWriter, r *http.Request) {
	shop, platform, ok := h.platformFrom(w, r)
	if !ok {
		return
	}

	cfg, err := h.configs.Get(r.Context(), shop)
	if err != nil {
		if errors.Is(err, shopconfig.ErrNotFound) {
			writeJSON(w, http.StatusOK, variantsResponse{Variants: []shopify.Variant{}})
			return
		}
		internalError(w, r, "Get config", err)
		return
	}

	variants, err := platform.VariantsByIDs(r.Context(), cfg.VariantIDs)
	if err != nil {
		zctx.From(r.Context()).Warn("Variant lookup failed", zap.String("shop", shop), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, variantsResponse{Variants: variants})
}
