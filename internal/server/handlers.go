package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"forky/internal/config"
	"forky/internal/emt"
	"forky/internal/reader"
	"forky/internal/storage"
	"forky/internal/syncer"
)

// TokenStore is the handler-side view of the token store, used by the
// arrivals path which bypasses the engine.
type TokenStore interface {
	GetToken(ctx context.Context) (*storage.Token, error)
}

// ArrivalsClient fetches live arrivals for one stop.
type ArrivalsClient interface {
	Arrivals(ctx context.Context, stopID, accessToken string) (*emt.ArrivalResponse, error)
}

type handlers struct {
	engine  *syncer.Engine
	reader  *reader.Reader
	tokens  TokenStore
	client  ArrivalsClient
	cfg     *config.Config
	logger  *slog.Logger
	baseCtx context.Context
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.engine.Login(r.Context(), req.Email, req.Password); err != nil {
		var authErr *emt.AuthError
		if errors.As(err, &authErr) {
			writeError(w, http.StatusUnauthorized, authErr.Error())
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusBadGateway, "login failed: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sync(w http.ResponseWriter, r *http.Request) {
	// The sync outlives the request; it is bounded by the server's
	// lifetime, not the client's connection.
	if err := h.engine.TriggerSync(h.baseCtx); err != nil {
		if errors.Is(err, syncer.ErrSyncInFlight) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *handlers) stops(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", h.cfg.PageSize)
	offset := queryInt(r, "offset", 0)

	stops, err := h.reader.Page(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("page stops failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read stops")
		return
	}
	writeJSON(w, http.StatusOK, newStopsResponse(stops))
}

func (h *handlers) stopsNext(w http.ResponseWriter, r *http.Request) {
	stops, err := h.reader.LoadNext(r.Context())
	if err != nil {
		h.logger.Error("load next page failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read stops")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Stops []storage.Stop `json:"stops"`
		Count int            `json:"count"`
		More  bool           `json:"more"`
	}{stops, len(stops), h.reader.More()})
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", h.cfg.SearchLimit)

	stops, err := h.reader.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("search stops failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search stops")
		return
	}
	writeJSON(w, http.StatusOK, newStopsResponse(stops))
}

// arrival is one estimate shaped for the consumer.
type arrival struct {
	Line            string `json:"line"`
	Destination     string `json:"destination"`
	IsHead          bool   `json:"isHead"`
	EstimateSeconds int    `json:"estimateSeconds"`
	EstimateText    string `json:"estimateText"`
	DistanceMeters  int    `json:"distanceMeters"`
	Bus             int    `json:"bus,omitempty"`
	Deviation       int    `json:"deviation,omitempty"`
	PositionType    string `json:"positionType,omitempty"`
}

func (h *handlers) arrivals(w http.ResponseWriter, r *http.Request) {
	stopID := r.PathValue("id")

	token, err := h.tokens.GetToken(r.Context())
	if err != nil {
		h.logger.Error("get token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read token")
		return
	}
	if token == nil {
		writeError(w, http.StatusUnauthorized, emt.ErrNotAuthenticated.Error())
		return
	}

	resp, err := h.client.Arrivals(r.Context(), stopID, token.AccessToken)
	if err != nil {
		var authErr *emt.AuthError
		var apiErr *emt.APIError
		switch {
		case errors.As(err, &authErr):
			writeError(w, http.StatusUnauthorized, authErr.Error())
		case errors.As(err, &apiErr):
			writeError(w, http.StatusBadGateway, apiErr.Error())
		default:
			h.logger.Error("arrivals fetch failed", "stop", stopID, "error", err)
			writeError(w, http.StatusBadGateway, "arrivals fetch failed")
		}
		return
	}

	out := struct {
		Stop     string    `json:"stop"`
		DateTime string    `json:"datetime"`
		Arrivals []arrival `json:"arrivals"`
	}{Stop: stopID, DateTime: resp.DateTime, Arrivals: []arrival{}}

	for _, data := range resp.Data {
		for _, a := range data.Arrive {
			out.Arrivals = append(out.Arrivals, arrival{
				Line:            a.Line,
				Destination:     a.Destination,
				IsHead:          a.IsHead == "True",
				EstimateSeconds: int(a.EstimateArrive),
				EstimateText:    emt.FormatETA(int(a.EstimateArrive)),
				DistanceMeters:  a.DistanceBus,
				Bus:             a.Bus,
				Deviation:       a.Deviation,
				PositionType:    a.PositionTypeBus,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type stopsResponse struct {
	Stops []storage.Stop `json:"stops"`
	Count int            `json:"count"`
}

func newStopsResponse(stops []storage.Stop) stopsResponse {
	if stops == nil {
		stops = []storage.Stop{}
	}
	return stopsResponse{Stops: stops, Count: len(stops)}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
