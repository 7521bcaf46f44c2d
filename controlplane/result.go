package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"localdeals/controlplane/domain"

	"github.com/rs/zerolog/log"
)

// Result é o envelope de todas as respostas.
type Result struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Result{Success: true, Data: data})
}

// fail é para resultados de negócio (esgotado, duplicado, inexistente): 200 com success=false.
func fail(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, Result{Success: false, ErrorMsg: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrRebuildContended):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstreamLoad):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, Result{Success: false, ErrorMsg: msg})
}
