package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tokenart/internal/http/handlers"
	"tokenart/internal/middleware"
)

// Options configures the cross-cutting middleware of the router.
type Options struct {
	Logger          zerolog.Logger
	Auth            middleware.AuthConfig
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.EscapedRoutePath,
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/v1/targets/{target}", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Auth))

		r.Get("/", app.Summary)
		r.Get("/total", app.TotalInvested)
		r.Get("/last-investor", app.LastInvestor)
		r.Get("/goal", app.FundingGoal)
		r.Get("/funded", app.IsFullyFunded)
		r.Get("/contributions", app.Contributions)
		r.Get("/stream", app.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/contributions", app.RecordContribution)
			r.Put("/goal", app.SetFundingGoal)
		})
	})

	return r
}
