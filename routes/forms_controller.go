package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/routes/middlewares"
)

type createFormRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middlewares.UserFrom(r.Context())

		body := createFormRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.Forms.CreateForm(r.Context(), body.Title, body.Description, user.ID)
		if err != nil {
			httpx.LogError(w, r, "forms.create", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func AddQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		spec := model.QuestionSpec{}
		err = render.DecodeJSON(r.Body, &spec)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		question, err := app.Forms.AddQuestion(r.Context(), formId, spec)
		if err != nil {
			httpx.LogError(w, r, "forms.add_question", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, question)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Forms.ListForms(r.Context())
		if err != nil {
			httpx.LogError(w, r, "forms.list", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := app.Forms.GetForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "forms.get", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func PublishForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := app.Forms.PublishForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "forms.publish", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.Forms.DeleteForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "forms.delete", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ListPublishedForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := app.Forms.ListForms(r.Context())
		if err != nil {
			httpx.LogError(w, r, "forms.list_published", err)
			return
		}

		forms := []model.Form{}
		for _, f := range all {
			if f.IsPublished {
				forms = append(forms, f)
			}
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

// GetPublishedForm is the applicant's view of a form: unpublished forms do
// not exist and knockout answers are left out.
func GetPublishedForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := app.Forms.GetForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "forms.get_published", err)
			return
		}
		if !form.Form.IsPublished {
			httpx.LogNotFound(w, r, "forms.get_published", formId)
			return
		}

		for i := range form.Questions {
			form.Questions[i].CorrectAnswer = nil
		}

		render.JSON(w, r, form)
	}
}

func ListFormApplications(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		apps, err := app.Reports.ApplicationsForForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "report.applications_for_form", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"applications": apps,
		})
	}
}

func GetFormStats(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := urlID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		stats, err := app.Reports.StatsForExistingForm(r.Context(), formId)
		if err != nil {
			httpx.LogError(w, r, "report.stats", err)
			return
		}

		render.JSON(w, r, stats)
	}
}
