package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const (
	headerWebhookHMAC  = "X-Shopify-Hmac-Sha256"
	headerWebhookTopic = "X-Shopify-Topic"

	topicAppUninstalled = "app/uninstalled"
)

// Webhook receives platform webhooks. Deliveries with a bad signature are
// rejected; verified deliveries are always acknowledged so the platform does
// not retry them.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.verifyWebhook(r.Header.Get(headerWebhookHMAC), body) {
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	topic := r.Header.Get(headerWebhookTopic)
	shop := r.Header.Get(headerShopDomain)
	lg := zctx.From(r.Context()).With(zap.String("topic", topic), zap.String("shop", shop))

	switch topic {
	case topicAppUninstalled:
		if shop == "" {
			lg.Warn("Uninstall webhook without shop")
			break
		}
		if err := h.configs.Uninstall(r.Context(), shop); err != nil {
			lg.Warn("Failed to delete config on uninstall", zap.Error(err))
			break
		}
		lg.Info("Config deleted on uninstall")
	default:
		lg.Info("Webhook ignored")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) verifyWebhook(signature string, body []byte) bool {
	if len(h.webhookSecret) == 0 || signature == "" {
		return false
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(given, WebhookSignature(h.webhookSecret, body))
}

// WebhookSignature returns the raw HMAC-SHA256 of body keyed with secret.
func WebhookSignature(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
