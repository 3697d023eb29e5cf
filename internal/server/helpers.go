package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

const maxJSONBody = 4 << 20

var (
	errBodyRequired   = errors.New("request body is required")
	errTrailingObject = errors.New("request body must contain a single JSON object")
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.Any("err", err))
	}
}

// decodeJSON decodes exactly one JSON object from the request body into dst,
// rejecting unknown fields and bodies over 4MB.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errBodyRequired
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		return err
	}
	if err := decoder.Decode(new(struct{})); !errors.Is(err, io.EOF) {
		return errTrailingObject
	}
	return nil
}

func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") != ""
}

// setHXTrigger asks htmx to fire the given client-side events.
func setHXTrigger(w http.ResponseWriter, events map[string]any) {
	if len(events) == 0 {
		return
	}
	payload, err := encodeJSON(events)
	if err != nil {
		slog.Warn("failed to encode HX-Trigger", slog.Any("err", err))
		return
	}
	w.Header().Set("HX-Trigger", payload)
}

func encodeJSON(data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
