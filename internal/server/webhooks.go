package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
)

// Google push notification headers.
const (
	googChannelID     = "X-Goog-Channel-ID"
	googResourceState = "X-Goog-Resource-State"
	googChannelToken  = "X-Goog-Channel-Token"
)

// graphNotification is one entry of a Microsoft Graph change notification batch.
type graphNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
}

type graphNotificationBatch struct {
	Value []graphNotification `json:"value"`
}

// WebhookHandler receives provider push notifications and schedules a background sync
// for the channel's owner. Handlers never wait for the sync.
type WebhookHandler struct {
	engine     *tasks.CalendarEngine
	dispatcher *tasks.Dispatcher
	metrics    *Metrics
	token      string
	logger     *log.Logger
	mux        *http.ServeMux
}

// NewWebhookHandler creates the handler. token, when set, is also accepted as a channel token.
func NewWebhookHandler(engine *tasks.CalendarEngine, dispatcher *tasks.Dispatcher, metrics *Metrics, token string, logger *log.Logger) *WebhookHandler {
	h := &WebhookHandler{
		engine:     engine,
		dispatcher: dispatcher,
		metrics:    metrics,
		token:      token,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /webhooks/google", h.google)
	h.mux.HandleFunc("POST /webhooks/microsoft", h.microsoft)
	return h
}

func (h *WebhookHandler) Routes() []string {
	return []string{"POST /webhooks/google", "POST /webhooks/microsoft"}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *WebhookHandler) count(provider models.Provider, outcome string) {
	if h.metrics != nil {
		h.metrics.Notification(string(provider), outcome)
	}
}

// tokenMatches compares in constant time; an empty stored state never matches.
func tokenMatches(stored, got string) bool {
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(got)) == 1
}

func (h *WebhookHandler) authorized(channel *models.WatchChannel, got string) bool {
	return tokenMatches(channel.ClientState, got) || tokenMatches(h.token, got)
}

func (h *WebhookHandler) google(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get(googChannelID)
	if channelID == "" {
		h.count(models.ProviderGoogle, "invalid")
		writeError(w, fmt.Errorf("%w: missing %s", shared.ErrMissingArgument, googChannelID))
		return
	}

	channel, err := h.engine.Stores().Watches.Get(channelID)
	if err != nil {
		h.count(models.ProviderGoogle, "unknown")
		writeError(w, err)
		return
	}
	if channel.Provider != models.ProviderGoogle {
		h.count(models.ProviderGoogle, "unknown")
		writeError(w, fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID))
		return
	}

	if !h.authorized(channel, r.Header.Get(googChannelToken)) {
		h.count(models.ProviderGoogle, "forbidden")
		writeError(w, fmt.Errorf("%w: channel token mismatch", shared.ErrForbidden))
		return
	}

	// "sync" is the handshake sent when the channel opens.
	if r.Header.Get(googResourceState) == "sync" {
		h.count(models.ProviderGoogle, "handshake")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.dispatchSync(channel)
	h.count(models.ProviderGoogle, "dispatched")
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) microsoft(w http.ResponseWriter, r *http.Request) {
	// Graph validates a new subscription by posting a token it expects echoed back within 10 seconds.
	if token := r.URL.Query().Get("validationToken"); token != "" {
		h.count(models.ProviderMicrosoft, "handshake")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
		return
	}

	var batch graphNotificationBatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&batch); err != nil {
		h.count(models.ProviderMicrosoft, "invalid")
		writeError(w, fmt.Errorf("%w: malformed notification: %v", shared.ErrInvalidInput, err))
		return
	}

	dispatched := map[string]bool{}
	for _, n := range batch.Value {
		channel, err := h.engine.Stores().Watches.Get(n.SubscriptionID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				h.logger.Error("failed to look up subscription", "subscription", n.SubscriptionID, "error", err)
			}
			h.count(models.ProviderMicrosoft, "unknown")
			continue
		}
		if channel.Provider != models.ProviderMicrosoft {
			h.logger.Warn("notification for a non-microsoft channel", "subscription", n.SubscriptionID, "provider", channel.Provider)
			h.count(models.ProviderMicrosoft, "unknown")
			continue
		}
		if !h.authorized(channel, n.ClientState) {
			h.logger.Warn("client state mismatch", "subscription", n.SubscriptionID)
			h.count(models.ProviderMicrosoft, "forbidden")
			continue
		}
		if dispatched[channel.UserID] {
			continue
		}

		dispatched[channel.UserID] = true
		h.dispatchSync(channel)
		h.count(models.ProviderMicrosoft, "dispatched")
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *WebhookHandler) dispatchSync(channel *models.WatchChannel) {
	userID, provider := channel.UserID, channel.Provider
	h.dispatcher.Go("sync:"+string(provider)+":"+userID, func(ctx context.Context) error {
		_, err := h.engine.SyncUser(ctx, nil, userID, provider)
		return err
	})
}
