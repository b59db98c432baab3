package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"missionflow/auth"
	"missionflow/mission"
	"missionflow/payment"
	"missionflow/user"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// respondError maps domain sentinels to HTTP statuses in one place. Unknown
// errors become an opaque 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mission.ErrNotAvailable):
		writeError(w, http.StatusBadRequest, "Mission is not available")
	case errors.Is(err, mission.ErrMissionNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, payment.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, mission.ErrNotAuthorized),
		errors.Is(err, payment.ErrNotMissionClient):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, mission.ErrInvalidTransition),
		errors.Is(err, mission.ErrInvalidPrice),
		errors.Is(err, payment.ErrPaymentExists),
		errors.Is(err, payment.ErrNotSucceeded),
		errors.Is(err, payment.ErrBadSignature),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, user.ErrInvalidCoordinates),
		errors.Is(err, user.ErrNoFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, payment.ErrProvider):
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		log.Printf("httpapi: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
