package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Caller is the authenticated subject of a request, as carried by its session token.
type Caller struct {
	ID   string
	Role Role
}

// IsPatient reports whether the caller is the given patient.
func (c Caller) IsPatient(patientID string) bool {
	return c.Role == RolePatient && c.ID == patientID
}

// IsDoctor reports whether the caller is the given doctor.
func (c Caller) IsDoctor(doctorID string) bool {
	return c.Role == RoleDoctor && c.ID == doctorID
}

// Credentials holds the password hash shared by doctors and patients.
type Credentials struct {
	Password string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
}

// SetPassword hashes a password and stores the hash
func (c *Credentials) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the stored hash
func (c *Credentials) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password))
	return err == nil
}
