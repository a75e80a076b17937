package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/logger"
)

// Reader is the read side of the session manager.
type Reader interface {
	GetStatus(id string) (domain.State, error)
	GetActiveSession() (*domain.Session, bool)
	Sessions() []*domain.Session
	List() []*domain.Definition
	Volatile(id string) bool
	History() []domain.Outcome
}

// NewRouter registers every route on a new chi router.
func NewRouter(ctx context.Context, reader Reader) *chi.Mux {
	ctx = logger.WithName(ctx, "http")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(ctx))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v0", func(r chi.Router) {
		r.Get("/session", getSessionHandler(reader))
		r.Get("/alarms", listAlarmsHandler(reader))
		r.Get("/alarms/{alarmID}", getAlarmHandler(reader))
		r.Get("/history", historyHandler(reader))
	})

	return router
}

func getSessionHandler(reader Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := new(api.GetActiveSessionResponse)

		if active, ok := reader.GetActiveSession(); ok {
			session := api.FromSession(active)
			response.Session = &session

			for _, other := range reader.Sessions() {
				if other.AlarmID != active.AlarmID {
					response.Waiting = append(response.Waiting, api.FromSession(other))
				}
			}
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func listAlarmsHandler(reader Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		definitions := reader.List()

		response := api.ListResponse{Alarms: make([]api.Alarm, 0, len(definitions))}
		for _, def := range definitions {
			alarm := api.FromDefinition(def)
			alarm.Volatile = reader.Volatile(def.ID)
			response.Alarms = append(response.Alarms, alarm)
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func getAlarmHandler(reader Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "alarmID")

		state, err := reader.GetStatus(id)
		if errors.Is(err, domain.ErrAlarmNotFound) {
			writeJSON(w, http.StatusNotFound, api.GetStatusResponse{ID: id, State: string(state)})

			return
		}

		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, api.GetStatusResponse{ID: id, State: string(state)})
	}
}

func historyHandler(reader Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		outcomes := reader.History()

		response := api.HistoryResponse{Outcomes: make([]api.Outcome, 0, len(outcomes))}
		for _, outcome := range outcomes {
			response.Outcomes = append(response.Outcomes, api.Outcome{
				AlarmID:  outcome.AlarmID,
				State:    string(outcome.State),
				EndedAt:  outcome.EndedAt,
				Degraded: outcome.Degraded,
			})
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body)
}

func requestLogger(ctx context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			logger.DebugKV(ctx, "Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(started),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
