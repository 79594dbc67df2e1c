package profile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/profile", handler.HandleGet).Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/profile", handler.HandleSave).Methods("PUT", "OPTIONS").Name("save-profile")
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.get")
	defer span.End()

	session, _ := auth.SessionFromContext(r.Context())
	p, err := handler.service.Get(ctx, session)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		log.Errorf("get profile: %s", err)
		http.Error(w, "error, failed to get profile", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, p)
}

func (handler *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.save")
	defer span.End()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var p domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		log.Tracef("profile, unmarshal json body: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := handler.service.Save(ctx, session, p)
	if err != nil {
		if records.IsWriteError(err) {
			pkg.WriteTransientFailure(w, saved)
			return
		}
		log.Errorf("save profile: %s", err)
		http.Error(w, "error, failed to save profile", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, saved)
}
