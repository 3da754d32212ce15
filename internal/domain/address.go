package domain

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

type Address struct {
	ID        string    `bson:"id" json:"id,omitempty"`
	FirstName string    `bson:"first_name" json:"first_name"`
	LastName  string    `bson:"last_name" json:"last_name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone" json:"phone"`
	Street    string    `bson:"street" json:"street"`
	City      string    `bson:"city" json:"city"`
	State     string    `bson:"state" json:"state"`
	Country   string    `bson:"country" json:"country"`
	Zipcode   string    `bson:"zipcode" json:"zipcode"`
	Location  *Location `bson:"location,omitempty" json:"location,omitempty"`
	IsDefault bool      `bson:"is_default" json:"is_default"`
}

// Validate checks required fields and the phone and email formats.
func (a Address) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"email", a.Email},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"country", a.Country},
		{"zipcode", a.Zipcode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &FieldError{Field: f.name, Reason: "is required"}
		}
	}
	if !phonePattern.MatchString(a.Phone) {
		return &FieldError{Field: "phone", Reason: "must be 10 digits"}
	}
	if !emailPattern.MatchString(a.Email) {
		return &FieldError{Field: "email", Reason: "has invalid format"}
	}
	return nil
}

func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// AddressBook is the persisted list of a user's saved addresses.
type AddressBook struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Addresses []Address `bson:"addresses" json:"addresses"`
	Version   int64     `bson:"version" json:"version"`
}
