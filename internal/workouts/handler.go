package workouts

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

type ListResponse struct {
	Workouts []domain.Workout `json:"workouts"`
	Total    int              `json:"total"`
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
	r.HandleFunc("/exercises/categories", handler.HandleCategories).Methods("GET", "OPTIONS").Name("exercise-categories")

	r.HandleFunc("/workouts", handler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/workouts", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-workout")
	r.HandleFunc("/workouts/months", handler.HandleMonths).Methods("GET", "OPTIONS").Name("workout-months")
	r.HandleFunc("/workouts/stats", handler.HandleStats).Methods("GET", "OPTIONS").Name("workout-stats")

	r.HandleFunc("/workouts/drafts", handler.HandleListDrafts).Methods("GET", "OPTIONS").Name("list-drafts")
	r.HandleFunc("/workouts/drafts", handler.HandleStartDraft).Methods("POST", "OPTIONS").Name("start-draft")
	r.HandleFunc("/workouts/drafts/{id}", handler.HandleGetDraft).Methods("GET", "OPTIONS").Name("get-draft")
	r.HandleFunc("/workouts/drafts/{id}", handler.HandleUpdateDraft).Methods("PUT", "OPTIONS").Name("update-draft")
	r.HandleFunc("/workouts/drafts/{id}", handler.HandleDiscardDraft).Methods("DELETE", "OPTIONS").Name("discard-draft")
	r.HandleFunc("/workouts/drafts/{id}/exercises", handler.HandleAddExercise).Methods("POST", "OPTIONS").Name("add-exercise")
	r.HandleFunc("/workouts/drafts/{id}/finish", handler.HandleFinishDraft).Methods("POST", "OPTIONS").Name("finish-draft")

	r.HandleFunc("/workouts/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-workout")
}

func sessionOrUnauthorized(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return nil, false
	}
	return session, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Tracef("workouts, unmarshal json body: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps service errors to responses. data is sent along with a
// write failure, since the change is applied in memory.
func writeError(w http.ResponseWriter, err error, action string, data any) {
	switch {
	case records.IsWriteError(err):
		pkg.WriteTransientFailure(w, data)
	case errors.Is(err, auth.ErrNoSession):
		http.Error(w, "no can do", http.StatusUnauthorized)
	case errors.Is(err, ErrDraftNotFound), errors.Is(err, records.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidWorkout), errors.Is(err, ErrInvalidExercise):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, records.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Errorf("workouts, %s: %s", action, err)
		http.Error(w, "error, failed to "+action, http.StatusInternalServerError)
	}
}

func (handler *Handler) HandleCategories(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSONResponse(w, http.StatusOK, handler.service.ExerciseCategories())
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	workouts, err := handler.service.List(ctx, session)
	if err != nil {
		writeError(w, err, "list workouts", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, ListResponse{Workouts: workouts, Total: len(workouts)})
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.add")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var params QuickAdd
	if !decodeBody(w, r, &params) {
		return
	}

	workout, err := handler.service.Add(ctx, session, params)
	if err != nil {
		writeError(w, err, "add workout", workout)
		return
	}

	log.Debugf("new workout added: [%s] %s", workout.ID, workout.Name)
	pkg.WriteJSONResponse(w, http.StatusCreated, workout)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	resp := DeleteResponse{DeletedID: id}
	if err := handler.service.Remove(ctx, session, id); err != nil {
		writeError(w, err, "remove workout", resp)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, resp)
}

func (handler *Handler) HandleMonths(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.months")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	groups, err := handler.service.Months(ctx, session)
	if err != nil {
		writeError(w, err, "group workouts", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, groups)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stats")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	summary, err := handler.service.Summary(ctx, session)
	if err != nil {
		writeError(w, err, "summarize workouts", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, summary)
}

func (handler *Handler) HandleListDrafts(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}
	pkg.WriteJSONResponse(w, http.StatusOK, handler.service.Drafts(session))
}

func (handler *Handler) HandleStartDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.drafts.start")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var params StartParams
	if r.ContentLength != 0 && !decodeBody(w, r, &params) {
		return
	}

	draft, err := handler.service.StartDraft(ctx, session, params)
	if err != nil {
		writeError(w, err, "start workout", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusCreated, draft)
}

func (handler *Handler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	draft, err := handler.service.Draft(session, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "get draft", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, draft)
}

func (handler *Handler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var patch DraftPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	draft, err := handler.service.UpdateDraft(session, mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err, "update draft", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, draft)
}

func (handler *Handler) HandleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := handler.service.DiscardDraft(session, id); err != nil {
		writeError(w, err, "discard draft", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, DeleteResponse{DeletedID: id})
}

func (handler *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var exercise domain.Exercise
	if !decodeBody(w, r, &exercise) {
		return
	}

	draft, err := handler.service.AddExercise(session, mux.Vars(r)["id"], exercise)
	if err != nil {
		writeError(w, err, "add exercise", nil)
		return
	}

	pkg.WriteJSONResponse(w, http.StatusOK, draft)
}

func (handler *Handler) HandleFinishDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.drafts.finish")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	workout, err := handler.service.FinishDraft(ctx, session, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "finish workout", workout)
		return
	}

	log.Debugf("workout finished: [%s] %s, %s min", workout.ID, workout.Name, workout.Duration)
	pkg.WriteJSONResponse(w, http.StatusCreated, workout)
}
