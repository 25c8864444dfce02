package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/v1/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// AllowedOrigins is the CORS allow list. "*" or empty allows all origins.
	AllowedOrigins []string
}

// answerer is the interface the answer handlers call. *rag.Engine satisfies
// it; tests inject a fake.
type answerer interface {
	// Answer responds to the most recent user question in the conversation.
	Answer(ctx context.Context, turns []qa.Turn) (string, error)
	// Search returns the records closest to the query.
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
}

// recordStore is the slice of the catalog the question handlers need.
type recordStore interface {
	Save(ctx context.Context, rec qa.Record) error
	Recent(ctx context.Context, n int) ([]qa.Record, error)
}

// Server is the HTTP server that exposes the question-answering engine.
type Server struct {
	// engine answers questions and runs direct searches.
	engine answerer
	// idx receives new records on POST /api/v1/questions.
	idx index.Index
	// catalog persists the authoritative record fields.
	catalog recordStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// turnPayload is one conversation turn in the ask request body.
type turnPayload struct {
	// ID is an optional client-side message identifier, echoed nowhere.
	ID string `json:"id,omitempty"`
	// Role is the author: "user" or "agent".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// askRequest is the JSON body for POST /api/v1/ask.
type askRequest struct {
	// Messages is the conversation so far, oldest first.
	Messages []turnPayload `json:"messages"`
}

// askResponse is the JSON response for POST /api/v1/ask.
type askResponse struct {
	// Answer is the generated assistant reply.
	Answer string `json:"answer"`
}

// addQuestionRequest is the JSON body for POST /api/v1/questions.
type addQuestionRequest struct {
	// Title is the question as asked.
	Title string `json:"title"`
	// Content is the validated answer.
	Content string `json:"content"`
	// Topic is the thematic label.
	Topic string `json:"topic"`
	// School restricts the record to one school, empty means all.
	School string `json:"school,omitempty"`
	// Audience restricts the record to one audience, empty means all.
	Audience string `json:"audience,omitempty"`
	// Language is the record language, defaults to French.
	Language string `json:"language,omitempty"`
}

// addQuestionResponse is the JSON response for POST /api/v1/questions.
type addQuestionResponse struct {
	// Status is "success" on acceptance.
	Status string `json:"status"`
	// Message is a human-readable confirmation.
	Message string `json:"message"`
	// ID is the identifier assigned to the new record.
	ID string `json:"id"`
}

// questionSummary is one entry in the GET /api/v1/questions response.
type questionSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Date     string `json:"date"`
}

// searchHit is one entry in the GET /api/v1/search response.
type searchHit struct {
	// ID is the record identifier.
	ID string `json:"id"`
	// Text is the rendered document text.
	Text string `json:"text"`
	// Score is the cosine similarity to the query.
	Score float32 `json:"score"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	Error string `json:"error"`
}
