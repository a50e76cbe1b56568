package apisdk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const (
	PathCars   = "/cars/"
	PathBrands = "/cars/brands/"
	PathModels = "/cars/models/"
)

// ListCars returns the signed-in user's cars.
func (s *Session) ListCars(ctx context.Context) (*List[Car], error) {
	var list List[Car]
	if err := s.Get(ctx, PathCars, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateCar adds a car. The reply echoes the stored IDs, not display titles.
func (s *Session) CreateCar(ctx context.Context, req CreateCarRequest) (*CreatedCar, error) {
	var car CreatedCar
	if err := s.Post(ctx, PathCars, req, &car); err != nil {
		return nil, err
	}
	return &car, nil
}

func (s *Session) DeleteCar(ctx context.Context, id int64) error {
	return s.Delete(ctx, carPath(id), nil)
}

// ListBrands returns the brand reference list.
func (s *Session) ListBrands(ctx context.Context) (*List[Brand], error) {
	var list List[Brand]
	if err := s.Get(ctx, PathBrands, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListModels returns the models of one brand.
func (s *Session) ListModels(ctx context.Context, brandID int64) (*List[CarModel], error) {
	var list List[CarModel]
	path := PathModels + "?" + url.Values{"brand": {strconv.FormatInt(brandID, 10)}}.Encode()
	if err := s.Get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func carPath(id int64) string {
	return fmt.Sprintf("%s%d/", PathCars, id)
}
