package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
)

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req struct {
		MissionID string `json:"missionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MissionID == "" {
		writeError(w, http.StatusBadRequest, "missionId is required")
		return
	}

	result, err := s.payments.CreateIntent(r.Context(), p.UserID, req.MissionID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"clientSecret":    result.ClientSecret,
		"paymentIntentId": result.PaymentIntentID,
	})
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "paymentIntentId is required")
		return
	}

	if err := s.payments.Confirm(r.Context(), req.PaymentIntentID); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "succeeded"})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	payments, err := s.payments.History(r.Context(), p.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// handlePaymentWebhook receives provider callbacks. The raw body is needed
// for signature verification, so it skips the JSON decoder.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := s.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
