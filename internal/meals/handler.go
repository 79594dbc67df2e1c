package meals

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"
)

type MealRequest struct {
	Name     *string `json:"name"`
	Calories *string `json:"calories"`
}

type ListResponse struct {
	Meals []domain.Meal `json:"meals"`
	Total int           `json:"total"`
}

type DeleteResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/meals", handler.HandleList).Methods("GET", "OPTIONS").Name("list-meals")
	r.HandleFunc("/meals", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-meal")
	r.HandleFunc("/meals/total", handler.HandleTotal).Methods("GET", "OPTIONS").Name("meals-total")
	r.HandleFunc("/meals/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-meal")
	r.HandleFunc("/meals/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-meal")
}

func writeError(w http.ResponseWriter, err error, action string, data any) {
	switch {
	case records.IsWriteError(err):
		pkg.WriteTransientFailure(w, data)
	case errors.Is(err, auth.ErrNoSession):
		http.Error(w, "no can do", http.StatusUnauthorized)
	case errors.Is(err, records.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidMeal), errors.Is(err, ErrInvalidCalories):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("meals, %s: %s", action, err)
		http.Error(w, "error, failed to "+action, http.StatusInternalServerError)
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.meals.list")
	defer span.End()

	session, _ := auth.SessionFromContext(r.Context())
	meals, err := handler.service.List(ctx, session)
	if err != nil {
		writeError(w, err, "list meals", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, ListResponse{Meals: meals, Total: len(meals)})
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.meals.add")
	defer span.End()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req MealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("meals, unmarshal json body: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == nil || req.Calories == nil {
		http.Error(w, "error, name and calories required", http.StatusBadRequest)
		return
	}

	meal, err := handler.service.Add(ctx, session, *req.Name, *req.Calories)
	if err != nil {
		writeError(w, err, "add meal", meal)
		return
	}

	log.Debugf("new meal added: [%s] %s, %s kcal", meal.ID, meal.Name, meal.Calories)
	pkg.WriteJSONResponse(w, http.StatusCreated, meal)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.meals.update")
	defer span.End()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req MealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("meals, unmarshal json body: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	meal, err := handler.service.Update(ctx, session, mux.Vars(r)["id"], req.Name, req.Calories)
	if err != nil {
		writeError(w, err, "update meal", meal)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, meal)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.meals.delete")
	defer span.End()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	resp := DeleteResponse{DeletedID: id}
	if err := handler.service.Remove(ctx, session, id); err != nil {
		writeError(w, err, "remove meal", resp)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, resp)
}

func (handler *Handler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.meals.total")
	defer span.End()

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var date *time.Time
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		parsed, err := domain.ParseDate(dateParam)
		if err != nil {
			http.Error(w, "error, invalid date", http.StatusBadRequest)
			return
		}
		date = &parsed
	}

	total, err := handler.service.Total(ctx, session, date)
	if err != nil {
		writeError(w, err, "sum calories", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, total)
}
