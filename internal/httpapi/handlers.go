package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/connect4-backend/internal/recorder"
	"github.com/DoyleJ11/connect4-backend/pkg/types"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type StandingsSource interface {
	Standings(ctx context.Context, limit int) ([]recorder.Standing, error)
}

func GetStandings(src StandingsSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, types.NewError("limit must be a positive integer"))
				return
			}
			limit = min(n, maxLimit)
		}

		standings, err := src.Standings(r.Context(), limit)
		if err != nil {
			logger.Warn("standings query failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, types.NewError(recorder.ErrUnavailable.Error()))
			return
		}

		out := make([]types.Standing, 0, len(standings))
		for _, s := range standings {
			out = append(out, types.Standing{Player: s.Player, Wins: s.Wins})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
