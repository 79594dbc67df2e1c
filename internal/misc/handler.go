package misc

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/middleware"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type Handler struct {
	versionInfo string
	authHandler *auth.Handler
}

func NewHandler(versionInfo string, authHandler *auth.Handler) *Handler {
	return &Handler{
		versionInfo: versionInfo,
		authHandler: authHandler,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	authAllowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/myip", handler.handleGetMyIp).Methods("GET").Name("myip")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")

	authSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	authSubrouter.
		HandleFunc("/signup", handler.authHandler.HandleSignUp).
		Methods("POST", "OPTIONS").Name("signup")
	authSubrouter.
		HandleFunc("/signin", handler.authHandler.HandleSignIn).
		Methods("POST", "OPTIONS").Name("signin")
	authSubrouter.
		HandleFunc("/signout", handler.authHandler.HandleSignOut).
		Methods("GET", "OPTIONS").Name("signout")
	authSubrouter.
		HandleFunc("/session", handler.authHandler.HandleSession).
		Methods("GET", "OPTIONS").Name("session")

	// credential guessing is limited per client ip
	authSubrouter.Use(middleware.RateLimit(rateLimiter, "auth", authAllowedPerMin, metricsManager))
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleGetMyIp(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.getMyIp")
	defer span.End()

	ip, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Errorf("failed to get user IP address: %s", err)
		http.Error(w, "failed to get IP", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("user.ip", ip))
	pkg.WriteTextResponseOK(w, ip)
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}
