package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/jsonrpc"
	"github.com/mcphub/mcphub/internal/mcp"
	"github.com/mcphub/mcphub/internal/metrics"
)

// MaxBodyBytes caps the size of a request envelope.
const MaxBodyBytes = 4 << 20

const requestIDHeader = "X-Request-Id"

type API struct {
	config     *config.Config
	dispatcher *mcp.Dispatcher
	metrics    *metrics.Metrics
	logger     lager.Logger
}

func NewAPI(config *config.Config, dispatcher *mcp.Dispatcher, metrics *metrics.Metrics, logger lager.Logger) *API {
	return &API{
		config:     config,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Router returns the HTTP handler: POST / for JSON-RPC, GET /health and,
// when metrics are configured, GET /metrics. CORS and panic recovery wrap
// every route.
func (api *API) Router() http.Handler {
	router := mux.NewRouter()

	router.Handle("/", api.auth(http.HandlerFunc(api.HandleMessage))).Methods(http.MethodPost)
	router.HandleFunc("/health", api.Health).Methods(http.MethodGet)
	if api.metrics != nil {
		router.Handle("/metrics", api.metrics.Handler()).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(api.config.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Mcp-Session-Id"}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{api.logger}),
		handlers.PrintRecoveryStack(false),
	)

	return recovery(cors(router))
}

// HandleMessage answers one JSON-RPC envelope. The HTTP status is 200 for
// every protocol outcome; failures are carried in the envelope.
func (api *API) HandleMessage(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := api.logger.Session("handle-message", lager.Data{
		"request-id": requestID,
		"remote":     r.RemoteAddr,
	})
	w.Header().Set(requestIDHeader, requestID)

	var resp *jsonrpc.Response
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	r.Body.Close()
	if err != nil {
		logger.Info("failed-to-read-body", lager.Data{"error": err.Error()})
		resp = jsonrpc.NewErrorResponse(nil, jsonrpc.CodeParseError, "Invalid JSON")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			resp.Error.Message = fmt.Sprintf("Invalid JSON: request body exceeds %d bytes", tooLarge.Limit)
		}
	} else {
		resp = api.dispatcher.Dispatch(lagerctx.NewContext(r.Context(), logger), body)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (api *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  api.dispatcher.Info().Name,
		"version":  api.dispatcher.Info().Version,
		"instance": api.config.InstanceID,
	})
}

// auth requires "Authorization: Bearer <api key>" when an API key is configured.
func (api *API) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(api.config.APIKey)) != 1 {
			api.logger.Info("unauthorized", lager.Data{"remote": r.RemoteAddr})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(v)
}

type recoveryLogger struct {
	logger lager.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic-recovered", errors.New(fmt.Sprint(v...)))
}
