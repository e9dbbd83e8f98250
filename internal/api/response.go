package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in apiError.Code.
const (
	codeUnknownStage  = "unknown_stage"
	codeBusy          = "run_in_progress"
	codeNoConfigFile  = "no_config_file"
	codeInvalidConfig = "invalid_config"
)

// apiError is the body of every non-2xx response that carries no stage
// Result.
type apiError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, e apiError) {
	writeJSON(w, status, e)
}
