// Package jsonutil writes and reads the JSON bodies the API speaks.
//
// Every error body has the shape {"message": "..."} so the SPA can show it
// directly; a request id is attached when chi's RequestID middleware ran.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Write encodes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Created writes v with 201.
func Created(w http.ResponseWriter, v any) {
	Write(w, http.StatusCreated, v)
}

// Message writes {"message": msg} with 200.
func Message(w http.ResponseWriter, msg string) {
	Write(w, http.StatusOK, map[string]string{"message": msg})
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	body := ErrorBody{Message: msg}
	if r != nil {
		body.RequestID = middleware.GetReqID(r.Context())
	}
	Write(w, status, body)
}

// Decode reads a JSON body into dst. Unknown fields are allowed because the
// SPA sends whole form objects.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
