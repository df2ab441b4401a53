package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"deals-agent/handler"
	"deals-agent/internal/integrations/openai"
	"deals-agent/internal/repository"
	"deals-agent/internal/usecase"
)

// Local development server: the same Lambda handler behind a chi router, with
// the in-memory deal repository and environment-backed parameters instead of
// DynamoDB and SSM.
func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	paramPrefix := os.Getenv("PARAM_PREFIX")
	if paramPrefix == "" {
		paramPrefix = "/deals-agent"
	}

	params := envParams{}
	openaiClient, err := openai.NewClient(params, paramPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("create openai client")
	}
	classifier, err := usecase.NewLLMClassifier(params, openaiClient, paramPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("create classifier")
	}

	repo := repository.NewMemory(time.Now())
	ledger, err := usecase.NewClipLedger(repo)
	if err != nil {
		log.Fatal().Err(err).Msg("create clip ledger")
	}
	session, err := usecase.NewSession(classifier, repo, ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("create session")
	}
	h, err := handler.NewHandler(session)
	if err != nil {
		log.Fatal().Err(err).Msg("create handler")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Correlation-Id"},
	}))
	r.Use(requestLogger(log))
	r.Handle("/*", adaptLambda(h))

	log.Info().Str("addr", addr).Msg("deals agent listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// envParams serves the parameter names the classifier and OpenAI client load
// from SSM in production, backed by local environment variables.
type envParams struct{}

func (envParams) GetParameter(_ context.Context, name string) (string, error) {
	switch {
	case strings.HasSuffix(name, "/open-ai-token"):
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return fmt.Sprintf(`{"token":%q}`, key), nil
	case strings.HasSuffix(name, "/pinned_instruction"):
		return os.Getenv("PINNED_INSTRUCTION"), nil
	case strings.HasSuffix(name, "/config/openai_model"):
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		return model, nil
	default:
		return "", fmt.Errorf("unknown parameter %q", name)
	}
}

// adaptLambda bridges plain HTTP requests onto the API Gateway handler so the
// local server and the Lambda share one routing layer.
func adaptLambda(h *handler.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		query := make(map[string]string)
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            r.Method,
			Path:                  r.URL.Path,
			Headers:               headers,
			QueryStringParameters: query,
			Body:                  string(body),
		})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
