package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/routes/middlewares"
)

type submitRequest struct {
	FormID  int64           `json:"form_id"`
	Answers json.RawMessage `json:"answers"`
}

func SubmitApplication(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middlewares.UserFrom(r.Context())

		body := submitRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		answers, err := model.ParseAnswers(body.Answers)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_answers", "%s", err)
			return
		}

		application, err := app.Submissions.Submit(r.Context(), body.FormID, user.ID, answers)
		if err != nil {
			httpx.LogError(w, r, "submission.submit", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, application)
	}
}

func ListMyApplications(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middlewares.UserFrom(r.Context())

		apps, err := app.Reports.ApplicationsForUser(r.Context(), user.ID)
		if err != nil {
			httpx.LogError(w, r, "report.applications_for_user", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"applications": apps,
		})
	}
}

// GetApplication shows an application to its applicant or to an admin.
// Anyone else gets a 404.
func GetApplication(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middlewares.UserFrom(r.Context())

		applicationId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		application, err := app.Reports.Application(r.Context(), applicationId)
		if err != nil {
			httpx.LogError(w, r, "report.application", err)
			return
		}
		if application.UserID != user.ID && !user.HasRole(middlewares.RoleAdmin) {
			httpx.LogNotFound(w, r, "report.application.not_owner", applicationId)
			return
		}

		render.JSON(w, r, application)
	}
}
