package ui

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
)

// Envelope is the body of every JSON response. Message carries the flash
// style text shown to the user; Redirect names the next step of a flow.
type Envelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// OK answers 200 with data.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Next answers 200 and points the client at the following step.
func Next(w http.ResponseWriter, message, next string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Redirect: next})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// Retry is Error that keeps the client on next, where the step can be tried
// again.
func Retry(w http.ResponseWriter, status int, message, next string) {
	JSON(w, status, Envelope{Success: false, Message: message, Redirect: next})
}

// Redirect answers 303 with a Location header and the message in the body,
// so both browsers and API clients land on location.
func Redirect(w http.ResponseWriter, location, message string) {
	w.Header().Set("Location", location)
	JSON(w, http.StatusSeeOther, Envelope{Success: false, Message: message, Redirect: location})
}

// Render writes an HTML component.
func Render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := c.Render(r.Context(), w)
	if err != nil {
		slog.Error("render failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
