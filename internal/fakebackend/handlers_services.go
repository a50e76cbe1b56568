package fakebackend

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/httpx"
)

type carInfo struct {
	ID    int64  `json:"id"`
	Brand string `json:"brand"`
	Model string `json:"model"`
}

type serviceView struct {
	ID              int64     `json:"id"`
	CarInfo         carInfo   `json:"car_info"`
	WorkDescription string    `json:"work_description"`
	Hours           string    `json:"hours"`
	ScheduledDate   string    `json:"scheduled_date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	Car             int64     `json:"car"`
}

type serviceWrite struct {
	Car             *int64   `json:"car"`
	WorkDescription *string  `json:"work_description"`
	Hours           *decimal `json:"hours"`
	ScheduledDate   *string  `json:"scheduled_date"`
	Status          *string  `json:"status"`
}

// viewService renders the read serializer. Callers hold s.mu.
func (s *Server) viewService(svc *service) serviceView {
	v := serviceView{
		ID:              svc.ID,
		Car:             svc.CarID,
		WorkDescription: svc.WorkDescription,
		Hours:           svc.Hours,
		ScheduledDate:   svc.ScheduledDate,
		Status:          svc.Status,
		CreatedAt:       svc.CreatedAt,
	}
	if c, ok := s.data.cars[svc.CarID]; ok {
		cv := s.viewCar(c)
		v.CarInfo = carInfo{ID: c.ID, Brand: cv.Brand, Model: cv.Model}
	}
	return v
}

// validateService checks req against the write serializer. partial skips the
// required checks, as a PATCH does. Callers hold s.mu.
func (s *Server) validateService(owner int64, req serviceWrite, partial bool) fieldErrors {
	errs := fieldErrors{}
	if !partial {
		errs.required("car", req.Car == nil)
		errs.required("work_description", req.WorkDescription == nil || *req.WorkDescription == "")
		errs.required("hours", req.Hours == nil)
		errs.required("scheduled_date", req.ScheduledDate == nil)
	}

	if req.Car != nil && s.data.ownedCar(owner, *req.Car) == nil {
		errs.add("car", "Invalid pk \""+strconv.FormatInt(*req.Car, 10)+"\" - object does not exist.")
	}
	if req.WorkDescription != nil && len(*req.WorkDescription) > 255 {
		errs.add("work_description", "Ensure this field has no more than 255 characters.")
	}
	if req.Hours != nil {
		if _, msg := validHours(string(*req.Hours)); msg != "" {
			errs.add("hours", msg)
		}
	}
	if req.ScheduledDate != nil {
		if msg := validDate(*req.ScheduledDate); msg != "" {
			errs.add("scheduled_date", msg)
		}
	}
	if req.Status != nil {
		if msg := validStatus(*req.Status); msg != "" {
			errs.add("status", msg)
		}
	}
	return errs
}

// apply copies the set fields of req onto svc. req must be valid.
func (req serviceWrite) apply(svc *service) {
	if req.Car != nil {
		svc.CarID = *req.Car
	}
	if req.WorkDescription != nil {
		svc.WorkDescription = *req.WorkDescription
	}
	if req.Hours != nil {
		svc.Hours, _ = validHours(string(*req.Hours))
	}
	if req.ScheduledDate != nil {
		svc.ScheduledDate = *req.ScheduledDate
	}
	if req.Status != nil {
		svc.Status = *req.Status
	}
}

// GET /cars/services/?car={id}, newest scheduled date first.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	var carID int64
	if raw := r.URL.Query().Get("car"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, fieldErrors{"car": {"Enter a number."}})
			return
		}
		carID = id
	}

	s.mu.Lock()
	matched := make([]*service, 0)
	for _, svc := range s.data.services {
		if carID != 0 && svc.CarID != carID {
			continue
		}
		if s.data.ownedCar(owner, svc.CarID) == nil {
			continue
		}
		matched = append(matched, svc)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ScheduledDate != matched[j].ScheduledDate {
			return matched[i].ScheduledDate > matched[j].ScheduledDate
		}
		return matched[i].ID > matched[j].ID
	})

	items := make([]serviceView, 0, len(matched))
	for _, svc := range matched {
		items = append(items, s.viewService(svc))
	}
	s.mu.Unlock()

	p, ok := paginate(r, items)
	if !ok {
		writeInvalidPage(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// POST /cars/services/
func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	var req serviceWrite
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := s.validateService(owner, req, false); errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	svc := &service{
		ID:        s.data.id(),
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	req.apply(svc)
	s.data.services[svc.ID] = svc

	httpx.WriteJSON(w, http.StatusCreated, s.viewService(svc))
}

// PATCH /cars/services/{id}/
func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	s.writeService(w, r, true)
}

// PUT /cars/services/{id}/
func (s *Server) handleReplaceService(w http.ResponseWriter, r *http.Request) {
	s.writeService(w, r, false)
}

func (s *Server) writeService(w http.ResponseWriter, r *http.Request, partial bool) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	var req serviceWrite
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	svc := s.data.ownedService(owner, id)
	if svc == nil {
		httpx.WriteDetail(w, http.StatusNotFound, "No Service matches the given query.")
		return
	}

	if errs := s.validateService(owner, req, partial); errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	req.apply(svc)
	httpx.WriteJSON(w, http.StatusOK, s.viewService(svc))
}

// DELETE /cars/services/{id}/
func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.ownedService(owner, id) == nil {
		httpx.WriteDetail(w, http.StatusNotFound, "No Service matches the given query.")
		return
	}
	delete(s.data.services, id)

	w.WriteHeader(http.StatusNoContent)
}
