// Package gateway is the HTTP front for the upstream chat-completion
// provider. It validates the client's message history, forwards it with fixed
// sampling parameters and normalizes every outcome into either the untouched
// upstream body or a {error:{message,code}} envelope.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/llm"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Server holds the gateway dependencies.
type Server struct {
	llm      config.LLMConfig
	origins  []string
	upstream llm.Completer
	models   []Model
	maxBody  int64
	log      *slog.Logger
}

// New creates a gateway. A nil models slice makes GET /models answer 404.
func New(cfg *config.Config, upstream llm.Completer, models []Model) *Server {
	maxBody := cfg.Gateway.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}
	return &Server{
		llm:      cfg.LLM,
		origins:  cfg.Gateway.AllowedOrigins,
		upstream: upstream,
		models:   models,
		maxBody:  maxBody,
		log:      logger.L.With("component", "gateway"),
	}
}

// Routes wires the HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.origins))

	r.Get("/models", s.handleModels)
	r.Post("/chat", s.handleChat)

	r.NotFound(methodNotAllowed)
	r.MethodNotAllowed(methodNotAllowed)
	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, errorBody{Message: "Method Not Allowed"})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	if s.models == nil {
		respondError(w, http.StatusNotFound, errorBody{Message: "Model catalog is not available.", Code: http.StatusNotFound})
		return
	}
	respondJSON(w, http.StatusOK, s.models)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit)
			s.logFailure(http.StatusRequestEntityTooLarge, msg, nil)
			respondError(w, http.StatusRequestEntityTooLarge, errorBody{Message: msg, Code: http.StatusRequestEntityTooLarge})
			return
		}
		s.logFailure(http.StatusBadRequest, err.Error(), nil)
		respondError(w, http.StatusBadRequest, errorBody{Message: "Request body could not be read.", Code: http.StatusBadRequest})
		return
	}

	req, verr := validate(body)
	if verr != nil {
		s.logFailure(http.StatusBadRequest, verr.Message, rawHistory(body))
		respondError(w, http.StatusBadRequest, errorBody{Message: verr.Message, Code: http.StatusBadRequest})
		return
	}

	if err := s.llm.CheckCredentials(); err != nil {
		s.logFailure(http.StatusInternalServerError, err.Error(), historyAttrs(req.Messages))
		respondError(w, http.StatusInternalServerError, errorBody{
			Message: "The server is not configured with a valid API key.",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	resp, err := s.upstream.Complete(r.Context(), llm.NewRequest(s.llm, req.ModelID, req.Messages))
	if err != nil {
		s.log.Warn("upstream request failed", "error", err)
	}

	out := normalize(resp, err)
	if out.kind == outcomeSuccess {
		respondRaw(w, out.status, out.contentType, out.raw)
		return
	}
	s.logFailure(out.status, out.envelope.Message, historyAttrs(req.Messages))
	respondError(w, out.status, out.envelope)
}

// logFailure records a failed chat request with whatever history it carried.
// It never panics into the response path.
func (s *Server) logFailure(status int, message string, history any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("failed to log chat failure", "panic", r)
		}
	}()
	s.log.Error("chat request failed",
		"status", status,
		"message", message,
		"history", history,
	)
}

// rawHistory returns the messages field of a body that failed validation as
// it was sent, or nil when there is none.
func rawHistory(body []byte) any {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	res := gjson.GetBytes(body, "messages")
	if !res.Exists() {
		return nil
	}
	return res.Raw
}

func historyAttrs(history []openai.ChatCompletionMessage) []map[string]string {
	out := make([]map[string]string, 0, len(history))
	for _, m := range history {
		out = append(out, map[string]string{"role": m.Role, "content": m.Content})
	}
	return out
}
