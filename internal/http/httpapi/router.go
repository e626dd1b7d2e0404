package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"genstudio/internal/http/handlers"
	"genstudio/internal/middleware"
)

type Options struct {
	Logger          zerolog.Logger
	JWTSecret       string
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/health", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	// poll triggers come from schedulers and provider callbacks, not users
	r.Post("/webhooks/polling", app.PollingWebhook)

	r.Route("/generations", func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(opts.JWTSecret),
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
		)
		r.Post("/generate", app.Generate)
		r.Post("/calculate-tokens", app.CalculateTokens)
		r.Get("/{id}", app.GetGeneration)
	})

	return r
}
