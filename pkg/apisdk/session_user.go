package apisdk

import "context"

const (
	PathCurrentUser = "/users/current/"
	PathProfile     = "/users/profile/"
)

// CurrentUser returns the profile of the signed-in user.
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := s.Get(ctx, PathCurrentUser, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile reads the editable profile view of the signed-in user.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := s.Get(ctx, PathProfile, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile patches the fields set in req and returns what the backend
// stored.
func (s *Session) UpdateProfile(ctx context.Context, req ProfileUpdate) (*ProfileUpdate, error) {
	var out ProfileUpdate
	if err := s.Patch(ctx, PathProfile, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
