/*
Package resp provides helper functions for sending the UI bridge's standardized JSON responses.

Every response carries a business code (0 on success, an errs code otherwise), a
message and an optional data payload.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/logx"
)

// JSONResponse defines the envelope returned by every bridge endpoint.
type JSONResponse struct {
	// Code is the business status code (0 for success, see errs package otherwise).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the headers and writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(response)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError sends the CustomError carried by err. Errors that are not
// CustomErrors are reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errs.NewError(errs.ErrUnknown)
	}
	customErr := errs.As(err)

	status := customErr.Status
	if status < 400 {
		status = http.StatusInternalServerError
	}

	RespondJSON(w, r, status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
