package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
	"github.com/xenking/bundle-discount/internal/function"
)

// Evaluate runs the discount function on a function input document and
// responds with the function output document.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := function.DecodeInput(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := function.Evaluate(in)
	h.metrics.record(r.Context(), "evaluate", res)
	writeRaw(w, http.StatusOK, function.EncodeResult(res))
}

// Preview evaluates the cart of a function input document against the
// configuration saved for the shop, ignoring any configuration in the body.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
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

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := function.DecodeInput(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := bundle.Allocate(in.Lines, cfg.Bundle())
	h.metrics.record(r.Context(), "preview", res)
	writeRaw(w, http.StatusOK, function.EncodeResult(res))
}
