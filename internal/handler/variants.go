package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// SearchVariants returns the first page of shop variants matching ?q=.
func (h *Handler) SearchVariants(w http.ResponseWriter, r *http.Request) {
	shop, platform, ok := h.platformFrom(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	variants, err := platform.SearchVariants(r.Context(), query)
	if err != nil {
		zctx.From(r.Context()).Warn("Variant search failed", zap.String("shop", shop), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, variantsResponse{Variants: variants})
}
