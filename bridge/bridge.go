package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/hupe1980/rlmharness/logging"
)

// Subcaller executes subcalls issued by interpreter code, applying budget
// accounting and event/trace bookkeeping. Both methods absorb every
// business-level failure into their string results (§4.4, §4.8); they
// never return an error to the Bridge.
type Subcaller interface {
	Query(ctx context.Context, prompt, model string) string
	QueryBatched(ctx context.Context, prompts []string, model string) []string
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type queryResponse struct {
	Response string `json:"response"`
}

type batchedRequest struct {
	Prompts []string `json:"prompts"`
	Model   string   `json:"model,omitempty"`
}

type batchedResponse struct {
	Responses []string `json:"responses"`
}

// Server is the loopback LM Bridge HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     logging.Logger
}

// Start binds an ephemeral loopback port and begins serving in the
// background. Callers obtain the URL to pass to the Worker's init request
// from Server.URL().
func Start(sub Subcaller, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bridge: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/llm_query", handleQuery(sub, logger))
	mux.HandleFunc("/llm_query_batched", handleBatched(sub, logger))

	srv := &Server{
		httpServer: &http.Server{Handler: mux},
		listener:   listener,
		logger:     logger,
	}

	go func() {
		if err := srv.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("bridge: serve exited", "error", err)
		}
	}()

	return srv, nil
}

// URL returns the base URL the interpreter should send subcall requests to.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete or ctx to be cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func handleQuery(sub Subcaller, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		text := sub.Query(r.Context(), req.Prompt, req.Model)
		writeJSON(w, logger, queryResponse{Response: text})
	}
}

func handleBatched(sub Subcaller, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req batchedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		responses := sub.QueryBatched(r.Context(), req.Prompts, req.Model)
		writeJSON(w, logger, batchedResponse{Responses: responses})
	}
}

func writeJSON(w http.ResponseWriter, logger logging.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("bridge: encode response failed", "error", err)
	}
}
