package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// UniverseHandler serves frozen weekly universes
// ⭐ SSOT: 유니버스 조회 API 핸들러는 이 구조체에서만
type UniverseHandler struct {
	store       contracts.UniverseStore
	currentWeek func() contracts.WeekKey
	logger      *logger.Logger
}

// NewUniverseHandler creates a new universe handler
func NewUniverseHandler(store contracts.UniverseStore, currentWeek func() contracts.WeekKey, log *logger.Logger) *UniverseHandler {
	return &UniverseHandler{
		store:       store,
		currentWeek: currentWeek,
		logger:      log,
	}
}

// GetCurrent returns the universe of the running week
// GET /api/universe/current
func (h *UniverseHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	h.respondUniverse(w, r, h.currentWeek())
}

// GetWeek returns the universe of a given ISO week
// GET /api/universe/{week}?strategy=breakout&candidates=true
func (h *UniverseHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	week, err := contracts.ParseWeekKey(mux.Vars(r)["week"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondUniverse(w, r, week)
}

func (h *UniverseHandler) respondUniverse(w http.ResponseWriter, r *http.Request, week contracts.WeekKey) {
	u, err := h.store.LoadUniverse(r.Context(), week)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No universe for "+week.String())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("week", week).Error("Failed to load universe")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve universe")
		return
	}

	strategy := contracts.StrategyID(r.URL.Query().Get("strategy"))
	candidatesOnly := r.URL.Query().Get("candidates") == "true"
	if strategy != "" || candidatesOnly {
		filtered := make([]contracts.StrategySignal, 0, len(u.Signals))
		for _, s := range u.Signals {
			if strategy != "" && s.Strategy != strategy {
				continue
			}
			if candidatesOnly && !s.Candidate {
				continue
			}
			filtered = append(filtered, s)
		}
		u.Signals = filtered
	}

	respondJSON(w, http.StatusOK, u)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
