package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/log"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusOf maps an error kind to the status the API answers with.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Will log err under code, and send a JSON error response whose status
// depends on the error kind. Unclassified errors never leak their message.
func LogError(w http.ResponseWriter, r *http.Request, code string, err error) {
	status := StatusOf(err)

	msg := http.StatusText(status)
	if e, ok := apperr.As(err); ok {
		msg = e.Message()
	}

	fields := log.Fields{"status": status, "kind": apperr.KindOf(err)}
	switch {
	case status >= http.StatusInternalServerError:
		log.WithFields(fields).Errorf("%s: %s", code, err)
	default:
		log.WithFields(fields).Debugf("%s: %s", code, err)
	}

	render.Status(r, status)
	render.JSON(w, r, errorBody{msg})
}

// Will log a debug message, and send a JSON error response with status 404
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, errorBody{http.StatusText(http.StatusNotFound)})
}

// Will log an error code at the given level, and send
// a JSON error response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	render.Status(r, status)
	render.JSON(w, r, errorBody{http.StatusText(status)})
}

// Will log an error code and message at the given level,
// and send a JSON error response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	render.Status(r, status)
	render.JSON(w, r, errorBody{errMsg})
}
