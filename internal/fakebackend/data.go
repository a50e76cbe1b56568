package fakebackend

import (
	"fmt"
	"sort"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/cryptox"
)

type user struct {
	ID            int64
	Username      string
	PasswordHash  string
	Email         string
	FirstName     string
	LastName      string
	PhotoFilename string
	DateBirth     *string
	Country       string
	Currency      string
	DistanceUnits string
}

type brand struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	LogoFilename string `json:"logo_filename"`
}

type carModel struct {
	ID       int64  `json:"id"`
	CarBrand int64  `json:"car_brand"`
	Title    string `json:"title"`
}

type car struct {
	ID               int64
	Owner            int64
	BrandID          int64
	ModelID          int64
	InitialMileage   int64
	Mileage          int64
	UpdatedMileageAt time.Time
}

type service struct {
	ID              int64
	CarID           int64
	WorkDescription string
	Hours           string
	ScheduledDate   string
	Status          string
	CreatedAt       time.Time
}

// dataset is the server's state. All access goes through Server.mu.
type dataset struct {
	nextID int64

	users    map[int64]*user
	brands   map[int64]*brand
	models   map[int64]*carModel
	cars     map[int64]*car
	services map[int64]*service

	// activeAccess holds the jti of every access token still accepted.
	activeAccess map[string]struct{}

	// blacklist holds fingerprints of revoked refresh tokens.
	blacklist map[string]time.Time
}

func newDataset() *dataset {
	return &dataset{
		users:        make(map[int64]*user),
		brands:       make(map[int64]*brand),
		models:       make(map[int64]*carModel),
		cars:         make(map[int64]*car),
		services:     make(map[int64]*service),
		activeAccess: make(map[string]struct{}),
		blacklist:    make(map[string]time.Time),
	}
}

func (d *dataset) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *dataset) userByName(username string) *user {
	for _, u := range d.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// ownedCar returns the car only when it belongs to owner.
func (d *dataset) ownedCar(owner, id int64) *car {
	c, ok := d.cars[id]
	if !ok || c.Owner != owner {
		return nil
	}
	return c
}

// ownedService returns the service only when its car belongs to owner.
func (d *dataset) ownedService(owner, id int64) *service {
	svc, ok := d.services[id]
	if !ok || d.ownedCar(owner, svc.CarID) == nil {
		return nil
	}
	return svc
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ============================================================================
// Seeding
// ============================================================================

// UserOption fills optional profile fields in AddUser.
type UserOption func(*user)

func WithEmail(email string) UserOption {
	return func(u *user) { u.Email = email }
}

func WithName(first, last string) UserOption {
	return func(u *user) {
		u.FirstName = first
		u.LastName = last
	}
}

// AddUser registers an account and returns its ID.
func (s *Server) AddUser(username, password string, opts ...UserOption) (int64, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data.addUser(username, hash, opts...)
	if u == nil {
		return 0, fmt.Errorf("fakebackend: user %q already exists", username)
	}
	return u.ID, nil
}

// addUser stores a new account, or returns nil when the username is taken.
func (d *dataset) addUser(username, passwordHash string, opts ...UserOption) *user {
	if d.userByName(username) != nil {
		return nil
	}

	u := &user{
		ID:            d.id(),
		Username:      username,
		PasswordHash:  passwordHash,
		PhotoFilename: "default-user.png",
		Country:       "UA",
		Currency:      "UAH",
		DistanceUnits: "km",
	}
	for _, opt := range opts {
		opt(u)
	}
	d.users[u.ID] = u
	return u
}

// AddBrand registers a brand and returns its ID.
func (s *Server) AddBrand(title, logo string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &brand{ID: s.data.id(), Title: title, LogoFilename: logo}
	s.data.brands[b.ID] = b
	return b.ID
}

// AddModel registers a model of brandID and returns its ID.
func (s *Server) AddModel(brandID int64, title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &carModel{ID: s.data.id(), CarBrand: brandID, Title: title}
	s.data.models[m.ID] = m
	return m.ID
}

// SeedReferenceData adds a few brands with models.
func (s *Server) SeedReferenceData() {
	catalog := []struct {
		brand  string
		logo   string
		models []string
	}{
		{"Toyota", "toyota.png", []string{"Corolla", "Camry", "RAV4"}},
		{"Ford", "ford.png", []string{"Focus", "Mustang"}},
		{"BMW", "bmw.png", []string{"3 Series", "X5"}},
	}

	for _, entry := range catalog {
		id := s.AddBrand(entry.brand, entry.logo)
		for _, m := range entry.models {
			s.AddModel(id, m)
		}
	}
}
