package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bethesda/readingplan/internal/plan"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// parseDayParam reads the {day} path value and checks it is a plan day.
func parseDayParam(r *http.Request) (int, error) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		return 0, err
	}
	if !plan.ValidDay(day) {
		return 0, plan.ErrInvalidDay
	}
	return day, nil
}

func dayParamError(w http.ResponseWriter, err error) {
	if errors.Is(err, plan.ErrInvalidDay) {
		writeError(w, http.StatusBadRequest, "day must be between 1 and 365")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid day")
}
