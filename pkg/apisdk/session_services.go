package apisdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const PathServices = "/cars/services/"

// ListServices returns the service records of one car, newest scheduled
// date first.
func (s *Session) ListServices(ctx context.Context, carID int64) (*List[Service], error) {
	var list List[Service]
	path := PathServices + "?" + url.Values{"car": {strconv.FormatInt(carID, 10)}}.Encode()
	if err := s.Get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *Session) CreateService(ctx context.Context, req CreateServiceRequest) (*Service, error) {
	var svc Service
	if err := s.Post(ctx, PathServices, req, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// UpdateServiceStatus sends {"status": status}. The returned record is nil
// when the backend replies with an empty body.
func (s *Session) UpdateServiceStatus(ctx context.Context, id int64, status ServiceStatus) (*Service, error) {
	return s.UpdateService(ctx, id, UpdateServiceRequest{Status: status})
}

// UpdateService applies a partial update (PATCH).
func (s *Session) UpdateService(ctx context.Context, id int64, req UpdateServiceRequest) (*Service, error) {
	return s.writeService(ctx, http.MethodPatch, id, req)
}

// ReplaceService overwrites a record (PUT).
func (s *Session) ReplaceService(ctx context.Context, id int64, req CreateServiceRequest) (*Service, error) {
	return s.writeService(ctx, http.MethodPut, id, req)
}

func (s *Session) DeleteService(ctx context.Context, id int64) error {
	return s.Delete(ctx, servicePath(id), nil)
}

func (s *Session) writeService(ctx context.Context, method string, id int64, body any) (*Service, error) {
	raw, err := s.Call(ctx, method, servicePath(id), body)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var svc Service
	if err := decodePayload(raw, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func servicePath(id int64) string {
	return fmt.Sprintf("%s%d/", PathServices, id)
}
