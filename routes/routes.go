package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/routes/middlewares"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.RealIP, middlewares.Logger, middleware.Recoverer)

	root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	if app.StoreTimeout > 0 {
		api.Use(middleware.Timeout(app.StoreTimeout))
	}

	api.Get("/forms", ListPublishedForms(app))
	api.Get(`/forms/{id:^\d+$}`, GetPublishedForm(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticated(app.TokenSecret))

		r.Post("/applications", SubmitApplication(app))
		r.Get("/applications/mine", ListMyApplications(app))
		r.Get(`/applications/{id:^\d+$}`, GetApplication(app))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.Admin)

			r.Post("/forms", CreateForm(app))
			r.Get("/forms", ListForms(app))
			r.Get(`/forms/{id:^\d+$}`, GetForm(app))
			r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))
			r.Put(`/forms/{id:^\d+$}/publish`, PublishForm(app))
			r.Post(`/forms/{id:^\d+$}/questions`, AddQuestion(app))

			r.Get(`/forms/{id:^\d+$}/applications`, ListFormApplications(app))
			r.Get(`/forms/{id:^\d+$}/stats`, GetFormStats(app))
		})
	})

	return api
}

func urlID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
