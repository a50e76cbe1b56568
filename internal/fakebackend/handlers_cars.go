package fakebackend

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/httpx"
)

type carView struct {
	ID               int64     `json:"id"`
	Brand            string    `json:"brand"`
	Model            string    `json:"model"`
	Logo             string    `json:"logo"`
	InitialMileage   int64     `json:"initial_mileage"`
	Mileage          int64     `json:"mileage"`
	UpdatedMileageAt time.Time `json:"updated_mileage_at"`
}

type carWrite struct {
	ID             int64  `json:"id,omitempty"`
	CarBrand       *int64 `json:"car_brand"`
	CarModel       *int64 `json:"car_model"`
	InitialMileage *int64 `json:"initial_mileage"`
	Mileage        *int64 `json:"mileage"`
}

// viewCar renders the read serializer. Callers hold s.mu.
func (s *Server) viewCar(c *car) carView {
	v := carView{
		ID:               c.ID,
		InitialMileage:   c.InitialMileage,
		Mileage:          c.Mileage,
		UpdatedMileageAt: c.UpdatedMileageAt,
	}
	if b, ok := s.data.brands[c.BrandID]; ok {
		v.Brand = b.Title
		v.Logo = b.LogoFilename
	}
	if m, ok := s.data.models[c.ModelID]; ok {
		v.Model = m.Title
	}
	return v
}

func writeInvalidPage(w http.ResponseWriter) {
	httpx.WriteDetail(w, http.StatusNotFound, "Invalid page.")
}

// GET /cars/brands/
func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]brand, 0, len(s.data.brands))
	for _, id := range sortedIDs(s.data.brands) {
		items = append(items, *s.data.brands[id])
	}
	s.mu.Unlock()

	p, ok := paginate(r, items)
	if !ok {
		writeInvalidPage(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// GET /cars/models/?brand={id}
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	var brandID int64
	if raw := r.URL.Query().Get("brand"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, fieldErrors{"brand": {"Enter a number."}})
			return
		}
		brandID = id
	}

	s.mu.Lock()
	items := make([]carModel, 0)
	for _, id := range sortedIDs(s.data.models) {
		m := s.data.models[id]
		if brandID != 0 && m.CarBrand != brandID {
			continue
		}
		items = append(items, *m)
	}
	s.mu.Unlock()

	p, ok := paginate(r, items)
	if !ok {
		writeInvalidPage(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// GET /cars/ lists the caller's cars only.
func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	s.mu.Lock()
	items := make([]carView, 0)
	for _, id := range sortedIDs(s.data.cars) {
		if c := s.data.cars[id]; c.Owner == owner {
			items = append(items, s.viewCar(c))
		}
	}
	s.mu.Unlock()

	p, ok := paginate(r, items)
	if !ok {
		writeInvalidPage(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// POST /cars/ {car_brand, car_model, initial_mileage, mileage}
func (s *Server) handleCreateCar(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	var req carWrite
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := fieldErrors{}
	errs.required("car_brand", req.CarBrand == nil)
	errs.required("car_model", req.CarModel == nil)
	errs.required("initial_mileage", req.InitialMileage == nil)
	errs.required("mileage", req.Mileage == nil)

	if req.CarBrand != nil {
		if _, ok := s.data.brands[*req.CarBrand]; !ok {
			errs.add("car_brand", "Invalid pk \""+strconv.FormatInt(*req.CarBrand, 10)+"\" - object does not exist.")
		}
	}
	if req.CarModel != nil {
		m, ok := s.data.models[*req.CarModel]
		switch {
		case !ok:
			errs.add("car_model", "Invalid pk \""+strconv.FormatInt(*req.CarModel, 10)+"\" - object does not exist.")
		case req.CarBrand != nil && m.CarBrand != *req.CarBrand:
			errs.add("car_model", "Model does not belong to the selected brand.")
		}
	}
	if req.InitialMileage != nil && *req.InitialMileage < 0 {
		errs.add("initial_mileage", "Ensure this value is greater than or equal to 0.")
	}
	if req.Mileage != nil && *req.Mileage < 0 {
		errs.add("mileage", "Ensure this value is greater than or equal to 0.")
	}
	if errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	c := &car{
		ID:               s.data.id(),
		Owner:            owner,
		BrandID:          *req.CarBrand,
		ModelID:          *req.CarModel,
		InitialMileage:   *req.InitialMileage,
		Mileage:          *req.Mileage,
		UpdatedMileageAt: time.Now().UTC(),
	}
	s.data.cars[c.ID] = c

	req.ID = c.ID
	httpx.WriteJSON(w, http.StatusCreated, req)
}

// DELETE /cars/{id}/ removes the car and its services.
func (s *Server) handleDeleteCar(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.ownedCar(owner, id) == nil {
		httpx.WriteDetail(w, http.StatusNotFound, "No Car matches the given query.")
		return
	}

	delete(s.data.cars, id)
	for sid, svc := range s.data.services {
		if svc.CarID == id {
			delete(s.data.services, sid)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
