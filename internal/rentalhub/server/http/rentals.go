package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
)

type startRequest struct {
	CarID           uuid.UUID `json:"car_id"`
	DurationMinutes int       `json:"duration_minutes"`
}

type extendRequest struct {
	RentalID          uuid.UUID `json:"rental_id"`
	AdditionalMinutes int       `json:"additional_minutes"`
}

type reportRequest struct {
	RentalID uuid.UUID `json:"rental_id"`
	Issue    string    `json:"issue"`
}

type feedbackRequest struct {
	RentalID uuid.UUID `json:"rental_id"`
	Rating   int       `json:"rating"`
	Comment  *string   `json:"comment"`
}

const maxBodyBytes = 1 << 16

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, string(core.CodeInvalidArgument), "invalid request body")
		return false
	}
	return true
}

func (s *Server) listCars(w http.ResponseWriter, r *http.Request) {
	cars, err := s.service.ListCars(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (s *Server) startRental(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	rental, err := s.service.StartRental(r.Context(), callerFrom(r.Context()), req.CarID, req.DurationMinutes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (s *Server) extendRental(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if !decode(w, r, &req) {
		return
	}
	rental, err := s.service.ExtendRental(r.Context(), callerFrom(r.Context()), req.RentalID, req.AdditionalMinutes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *Server) stopRental(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["rental_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, string(core.CodeInvalidArgument), "invalid rental id")
		return
	}
	rental, err := s.service.StopRental(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

// activeRental answers null when the caller has nothing running.
func (s *Server) activeRental(w http.ResponseWriter, r *http.Request) {
	rental, err := s.service.GetActiveRental(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *Server) myRentals(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt(w, r, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	rentals, err := s.service.ListMyRentals(r.Context(), callerFrom(r.Context()), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rentals)
}

func (s *Server) reportIssue(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}
	rental, err := s.service.ReportIssue(r.Context(), callerFrom(r.Context()), req.RentalID, req.Issue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decode(w, r, &req) {
		return
	}
	rental, err := s.service.SubmitFeedback(r.Context(), callerFrom(r.Context()), req.RentalID, req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

// queryInt reads an optional integer parameter; absent means zero.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(core.CodeInvalidArgument), "invalid "+name)
		return 0, false
	}
	return v, true
}
