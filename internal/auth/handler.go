package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"
)

const TokenHeader = "X-FIT-TOKEN"

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	Token   string   `json:"token"`
	Session *Session `json:"session"`
}

type SignUpResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	service *Service
	metrics *metrics.Manager
}

func NewHandler(service *Service, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service: service,
		metrics: metricsManager,
	}
}

// TokenFromRequest reads the session token from the X-FIT-TOKEN header or
// an Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func readCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		err := json.NewDecoder(r.Body).Decode(&creds)
		return creds, err
	}
	if err := r.ParseForm(); err != nil {
		return creds, err
	}
	creds.Email = r.Form.Get("email")
	creds.Password = r.Form.Get("password")
	return creds, nil
}

func writeAuthError(w http.ResponseWriter, err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, ErrUserExists):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		status = http.StatusBadRequest
	}
	pkg.WriteJSONResponse(w, status, ErrorResponse{Error: authErr.Message})
	return true
}

func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.signup")
	defer span.End()

	creds, err := readCredentials(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.SignUp(ctx, creds.Email, creds.Password)
	if err != nil {
		if writeAuthError(w, err) {
			return
		}
		log.Errorf("sign up [%s]: %s", creds.Email, err)
		http.Error(w, "sign up failed, try again later", http.StatusInternalServerError)
		return
	}

	log.Infof("new user signed up: %s", user.ID)
	pkg.WriteJSONResponse(w, http.StatusCreated, SignUpResponse{UserID: user.ID, Email: user.Email})
}

func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.signin")
	defer span.End()

	creds, err := readCredentials(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.SignIn(ctx, creds.Email, creds.Password, time.Now())
	if err != nil {
		if writeAuthError(w, err) {
			h.countSignIn("rejected")
			return
		}
		h.countSignIn("error")
		log.Errorf("sign in [%s]: %s", creds.Email, err)
		http.Error(w, "sign in failed, try again later", http.StatusInternalServerError)
		return
	}

	h.countSignIn("ok")
	pkg.WriteJSONResponse(w, http.StatusOK, SignInResponse{Token: session.Token, Session: session})
}

func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.signout")
	defer span.End()

	token := TokenFromRequest(r)
	if token == "" {
		http.Error(w, "no token", http.StatusBadRequest)
		return
	}

	existed, err := h.service.SignOut(ctx, token)
	if err != nil {
		log.Errorf("sign out: %s", err)
		http.Error(w, "sign out failed", http.StatusInternalServerError)
		return
	}
	if !existed {
		log.Debugf("sign out of unknown session")
	}

	pkg.WriteTextResponseOK(w, "signed out")
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	pkg.WriteJSONResponse(w, http.StatusOK, session)
}

func (h *Handler) countSignIn(result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.CounterSignIns.With(prometheus.Labels{"result": result}).Inc()
}
