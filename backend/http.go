package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "gopkg.in/inconshreveable/log15.v2"
)

type EnvHandlerFunc func(w http.ResponseWriter, req *http.Request, env *environment)

func EnvHandler(env *environment, f EnvHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f(w, req, env)
	})
}

// AuthenticatedHandler requires the X-Authentication header to match the configured token. When no token is
// configured every request is accepted.
func AuthenticatedHandler(f EnvHandlerFunc) EnvHandlerFunc {
	return EnvHandlerFunc(func(w http.ResponseWriter, req *http.Request, env *environment) {
		if env.token != "" && req.Header.Get("X-Authentication") != env.token {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "Bad or missing X-Authentication header")
			return
		}
		f(w, req, env)
	})
}

type environment struct {
	updater       *FeedUpdater
	subscriptions *SubscriptionManager
	logger        log.Logger
	token         string
}

// NewAPIHandler serves the scheduler status and subscription management.
func NewAPIHandler(updater *FeedUpdater, subscriptions *SubscriptionManager, logger log.Logger, token string) http.Handler {
	env := &environment{updater: updater, subscriptions: subscriptions, logger: logger, token: token}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	router.Method("GET", "/status", EnvHandler(env, GetStatusHandler))
	router.Route("/channels/{channelID}/subscriptions", func(r chi.Router) {
		r.Method("GET", "/", EnvHandler(env, AuthenticatedHandler(GetSubscriptionsHandler)))
		r.Method("POST", "/", EnvHandler(env, AuthenticatedHandler(CreateSubscriptionHandler)))
		r.Method("DELETE", "/", EnvHandler(env, AuthenticatedHandler(DeleteSubscriptionHandler)))
	})
	router.Method("GET", "/channels/{channelID}/opml", EnvHandler(env, AuthenticatedHandler(ExportSubscriptionsHandler)))
	router.Method("POST", "/channels/{channelID}/opml", EnvHandler(env, AuthenticatedHandler(ImportSubscriptionsHandler)))

	return router
}

func GetStatusHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	status := struct {
		State     string       `json:"state"`
		LastCycle *CycleReport `json:"last_cycle"`
	}{
		State:     env.updater.State().String(),
		LastCycle: env.updater.LastCycle(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

type subscriptionJSON struct {
	FeedID int64  `json:"feed_id"`
	URL    string `json:"url"`
}

func GetSubscriptionsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	feeds, err := env.subscriptions.List(req.Context(), chi.URLParam(req, "channelID"))
	if err != nil {
		writeSubscriptionError(w, env, err)
		return
	}

	subs := make([]subscriptionJSON, len(feeds))
	for i, f := range feeds {
		subs[i] = subscriptionJSON{FeedID: f.ID, URL: f.URL}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

func CreateSubscriptionHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var subscription struct {
		URL      string `json:"url"`
		Username string `json:"username"`
	}

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&subscription); err != nil {
		w.WriteHeader(422)
		fmt.Fprintf(w, "Error decoding request: %v", err)
		return
	}

	feedID, err := env.subscriptions.Subscribe(req.Context(), chi.URLParam(req, "channelID"), subscription.URL, subscription.Username)
	if err != nil {
		writeSubscriptionError(w, env, err)
		return
	}

	url, _ := ExtractFeedURL(subscription.URL, subscription.Username)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(subscriptionJSON{FeedID: feedID, URL: url})
}

func DeleteSubscriptionHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	err := env.subscriptions.Unsubscribe(req.Context(), chi.URLParam(req, "channelID"), req.FormValue("url"), req.FormValue("username"))
	if err != nil {
		writeSubscriptionError(w, env, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func ExportSubscriptionsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	channelID := chi.URLParam(req, "channelID")
	feeds, err := env.subscriptions.List(req.Context(), channelID)
	if err != nil {
		writeSubscriptionError(w, env, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="opml.xml"`)
	WriteOPML(w, ChannelOPML(channelID, feeds))
}

func ImportSubscriptionsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	doc, err := ReadOPML(req.Body)
	if err != nil {
		w.WriteHeader(422)
		fmt.Fprintln(w, "Error parsing OPML upload")
		return
	}

	results, err := env.subscriptions.Import(req.Context(), chi.URLParam(req, "channelID"), doc)
	if err != nil {
		writeSubscriptionError(w, env, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func writeSubscriptionError(w http.ResponseWriter, env *environment, err error) {
	switch {
	case errors.Is(err, data.ErrNotFound):
		http.NotFound(w, nil)
	case errors.Is(err, ErrInvalidFeedURL),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrNoFeedArgument),
		errors.Is(err, ErrFeedDoesNotExist),
		errors.Is(err, ErrInvalidChannelID):
		w.WriteHeader(422)
		fmt.Fprintln(w, err)
	default:
		env.logger.Error("subscription request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
