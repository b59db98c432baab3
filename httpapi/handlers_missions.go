package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"missionflow/mission"
)

type createMissionRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	IsUrgent       bool    `json:"isUrgent"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Address        string  `json:"address"`
	EstimatedPrice float64 `json:"estimatedPrice"`
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest, "title and category are required")
		return
	}

	m, err := s.missions.Create(r.Context(), p.UserID, mission.CreateRequest{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		IsUrgent:       req.IsUrgent,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Address:        req.Address,
		EstimatedPrice: req.EstimatedPrice,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMissionDTO(m))
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := mission.ListFilters{
		Status:   mission.Status(q.Get("status")),
		Category: q.Get("category"),
	}
	if filters.Status != "" && !filters.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if raw := q.Get("isUrgent"); raw != "" {
		urgent, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid isUrgent")
			return
		}
		filters.IsUrgent = &urgent
	}

	missions, err := s.missions.List(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMissionDTOs(missions))
}

func (s *Server) handleListUserMissions(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	missions, err := s.missions.ListForUser(r.Context(), p.UserID, r.URL.Query().Get("role"))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMissionDTOs(missions))
}

// handleGetMission returns the mission with its conversation so reconnecting
// chat clients can rebuild their history.
func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.missions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	dto := toMissionDTO(m)
	if s.messages != nil {
		messages, err := s.messages.ListForMission(r.Context(), m.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		dto.Messages = messages
	}

	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleAcceptMission(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	m, err := s.missions.Accept(r.Context(), chi.URLParam(r, "id"), p.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMissionDTO(m))
}

func (s *Server) handleUpdateMissionStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req struct {
		Status mission.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	m, err := s.missions.UpdateStatus(r.Context(), chi.URLParam(r, "id"), p.UserID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMissionDTO(m))
}

func (s *Server) handleCancelMission(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	m, err := s.missions.Cancel(r.Context(), chi.URLParam(r, "id"), p.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMissionDTO(m))
}
