package fakebackend

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
)

type userView struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	LastName      string  `json:"lastName"`
	PhotoFilename string  `json:"photoFilename"`
	DateBirth     *string `json:"dateBirth"`
	Country       string  `json:"country"`
	Currency      string  `json:"currency"`
	DistanceUnits string  `json:"distance_units"`
}

type profileView struct {
	Name      string  `json:"name"`
	LastName  string  `json:"lastName"`
	Country   string  `json:"country"`
	DateBirth *string `json:"dateBirth"`
}

// currentUser looks up the token's user. Callers hold s.mu.
func (s *Server) currentUser(r *http.Request) *user {
	id, _ := httpx.UserIDFromContext(r.Context())
	u, ok := s.data.users[id]
	if !ok {
		// Deleted while a token was still live.
		slogx.FromContext(r.Context()).Warn("current user missing",
			"user_id", id,
			"username", httpx.UsernameFromContext(r.Context()),
		)
		return nil
	}
	return u
}

// GET /users/current/ and GET /users/profile/
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(r)
	if u == nil {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Name:          u.FirstName,
		LastName:      u.LastName,
		PhotoFilename: u.PhotoFilename,
		DateBirth:     u.DateBirth,
		Country:       u.Country,
		Currency:      u.Currency,
		DistanceUnits: u.DistanceUnits,
	})
}

// PATCH /users/profile/ {name?, lastName?, country?, dateBirth?, photo?}
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      *string         `json:"name"`
		LastName  *string         `json:"lastName"`
		Country   *string         `json:"country"`
		DateBirth json.RawMessage `json:"dateBirth"`
		Photo     *string         `json:"photo"` // accepted and ignored, like the backend
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	var (
		dateSet bool
		date    *string
	)
	errs := fieldErrors{}
	if len(req.DateBirth) > 0 {
		dateSet = true
		if string(req.DateBirth) != "null" {
			var raw string
			if err := json.Unmarshal(req.DateBirth, &raw); err != nil {
				errs.add("dateBirth", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
			} else if msg := validDate(raw); msg != "" {
				errs.add("dateBirth", msg)
			} else {
				date = &raw
			}
		}
	}
	if req.Country != nil && len(*req.Country) > 100 {
		errs.add("country", "Ensure this field has no more than 100 characters.")
	}
	if errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(r)
	if u == nil {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	if req.Name != nil {
		u.FirstName = *req.Name
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Country != nil {
		u.Country = *req.Country
	}
	if dateSet {
		u.DateBirth = date
	}

	httpx.WriteJSON(w, http.StatusOK, profileView{
		Name:      u.FirstName,
		LastName:  u.LastName,
		Country:   u.Country,
		DateBirth: u.DateBirth,
	})
}
