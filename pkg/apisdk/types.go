package apisdk

import "time"

// ============================================================================
// Auth Types
// ============================================================================

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// TokenPair is the backend's token reply. Refresh is empty on a refresh
// reply unless the backend rotates refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// SignUpRequest registers an account. Password and RepeatPassword must
// match; the backend enforces that and its password rules.
type SignUpRequest struct {
	Username       string `json:"username"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeatPassword"`
}

// SignUpResponse is the backend's 201 reply; the new account is signed in.
type SignUpResponse struct {
	Status string       `json:"status"`
	User   SignedUpUser `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

type SignedUpUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Credential is what a Session holds.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// ============================================================================
// Pagination
// ============================================================================

// List is the backend's paginated envelope. An empty Results with a nil error
// is a successful empty listing.
type List[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ============================================================================
// Reference Data
// ============================================================================

type Brand struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	LogoFilename string `json:"logo_filename"`
}

type CarModel struct {
	ID       int64  `json:"id"`
	CarBrand int64  `json:"car_brand"`
	Title    string `json:"title"`
}

// ============================================================================
// Cars
// ============================================================================

// Car is the read shape: brand and model are display titles.
type Car struct {
	ID               int64     `json:"id"`
	Brand            string    `json:"brand"`
	Model            string    `json:"model"`
	Logo             string    `json:"logo"`
	InitialMileage   int64     `json:"initial_mileage"`
	Mileage          int64     `json:"mileage"`
	UpdatedMileageAt time.Time `json:"updated_mileage_at"`
}

// CreateCarRequest references brand and model by ID.
type CreateCarRequest struct {
	CarBrand       int64 `json:"car_brand"`
	CarModel       int64 `json:"car_model"`
	InitialMileage int64 `json:"initial_mileage"`
	Mileage        int64 `json:"mileage"`
}

// CreatedCar is the write serializer's echo of a new car.
type CreatedCar struct {
	ID int64 `json:"id"`
	CreateCarRequest
}

// ============================================================================
// Services
// ============================================================================

type ServiceStatus string

const (
	StatusPending    ServiceStatus = "pending"
	StatusInProgress ServiceStatus = "in_progress"
	StatusCompleted  ServiceStatus = "completed"
)

// ServiceStatuses lists the values the backend accepts.
var ServiceStatuses = []ServiceStatus{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of ServiceStatuses. The client never
// enforces it; the backend answers an invalid status with a 400.
func (s ServiceStatus) Valid() bool {
	for _, v := range ServiceStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CarInfo is the car summary embedded in a service record.
type CarInfo struct {
	ID    int64  `json:"id"`
	Brand string `json:"brand"`
	Model string `json:"model"`
}

type Service struct {
	ID              int64         `json:"id"`
	Car             int64         `json:"car"`
	CarInfo         *CarInfo      `json:"car_info,omitempty"`
	WorkDescription string        `json:"work_description"`
	Hours           string        `json:"hours"` // decimal, e.g. "1.5"
	ScheduledDate   string        `json:"scheduled_date"`
	Status          ServiceStatus `json:"status"`
	CreatedAt       *time.Time    `json:"created_at,omitempty"`
}

type CreateServiceRequest struct {
	Car             int64         `json:"car"`
	WorkDescription string        `json:"work_description"`
	Hours           string        `json:"hours"`
	ScheduledDate   string        `json:"scheduled_date"`
	Status          ServiceStatus `json:"status,omitempty"`
}

// UpdateServiceRequest is a partial update; zero fields are left out.
type UpdateServiceRequest struct {
	WorkDescription string        `json:"work_description,omitempty"`
	Hours           string        `json:"hours,omitempty"`
	ScheduledDate   string        `json:"scheduled_date,omitempty"`
	Status          ServiceStatus `json:"status,omitempty"`
}

// ============================================================================
// Users
// ============================================================================

// ProfileUpdate is the writable part of the profile. Nil fields are left as
// they are. The backend echoes the same shape back.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Country   *string `json:"country,omitempty"`
	DateBirth *string `json:"dateBirth,omitempty"`
}

type User struct {
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
