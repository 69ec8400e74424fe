package models

import (
	"encoding/json"
	"strings"
	"time"
)

// User is a staff account as listed by /users and /team.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f := fields(raw)
	*u = User{
		ID:     f.str("_id", "id"),
		Name:   f.str("name", "full_name"),
		Email:  f.str("email"),
		Role:   strings.ToLower(f.str("role")),
		Status: f.str("status"),
	}
	return nil
}

// Enquiry is an inbound lead that has not been registered as a client yet.
type Enquiry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MobileNumber string    `json:"mobileNumber,omitempty"`
	BusinessType string    `json:"businessType,omitempty"`
	Status       string    `json:"status,omitempty"`
	StaffName    string    `json:"staffName,omitempty"`
	Comments     string    `json:"comments,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (e *Enquiry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f := fields(raw)
	*e = Enquiry{
		ID:           f.str("_id", "id"),
		Name:         f.str("wati_name", "name"),
		MobileNumber: f.str("mobile_number", "mobileNumber"),
		BusinessType: f.str("business_type", "businessType"),
		Status:       strings.ToLower(f.str("status")),
		StaffName:    f.str("staff", "staffName"),
		Comments:     f.str("comments"),
		CreatedAt:    f.timestamp("created_at", "date", "createdAt"),
		UpdatedAt:    f.timestamp("updated_at", "updatedAt"),
	}
	return nil
}
