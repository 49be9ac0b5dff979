package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"stagesmart/internal/http/handlers"
	"stagesmart/internal/infra/geoip"
	"stagesmart/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires around the
// handlers.
type RouterOptions struct {
	Logger      zerolog.Logger
	CORSOrigins []string
	GeoIP       geoip.CountryResolver
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.Logger(opts.Logger, opts.GeoIP),
		middleware.Session,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Post("/stage", app.Stage)
		r.Post("/analyze", app.Analyze)
		r.Get("/credits", app.Credits)
		r.Post("/credits/grant", app.GrantCredits)
		r.Get("/generations", app.GenerationHistory)
	})

	return r
}
