package httpapi

import (
	"net/http"
	"strconv"

	"missionflow/admin"
)

func listFiltersFrom(r *http.Request) admin.ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := admin.ListFilters{
		Role:     q.Get("role"),
		Status:   q.Get("status"),
		Page:     page,
		PageSize: limit,
	}
	filters.Normalize()
	return filters
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.GetStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	filters := listFiltersFrom(r)
	users, total, err := s.admin.ListUsers(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}

	dtos := make([]userDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, pageDTO{Data: dtos, Total: total, Page: filters.Page, Limit: filters.PageSize})
}

func (s *Server) handleAdminMissions(w http.ResponseWriter, r *http.Request) {
	filters := listFiltersFrom(r)
	missions, total, err := s.admin.ListMissions(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageDTO{Data: toMissionDTOs(missions), Total: total, Page: filters.Page, Limit: filters.PageSize})
}

func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	filters := listFiltersFrom(r)
	payments, total, err := s.admin.ListPayments(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageDTO{Data: toPaymentDTOs(payments), Total: total, Page: filters.Page, Limit: filters.PageSize})
}
