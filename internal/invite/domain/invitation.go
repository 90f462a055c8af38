package domain

import (
	"errors"
	"strings"
	"time"
)

// Invitation is a server-issued, time-bounded offer to join a video call room.
// The client holds a read-only copy; the backend owns the record.
type Invitation struct {
	AppointmentID    string     `json:"appointmentId"`
	ProfessionalName string     `json:"professionalName"`
	PatientName      string     `json:"patientName,omitempty"`
	AppointmentType  string     `json:"appointmentType"`
	AppointmentTime  *time.Time `json:"appointmentTime,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
}

// Validate checks the fields required to act on an invitation.
func (i *Invitation) Validate() error {
	if strings.TrimSpace(i.AppointmentID) == "" {
		return errors.New("invitation: appointment id is required")
	}
	if strings.TrimSpace(i.ProfessionalName) == "" {
		return errors.New("invitation: professional name is required")
	}
	return nil
}

// InitiatorName returns the display name of the user who initiated the call.
// Invitations are professional-initiated; Validate guarantees the name is set.
func (i *Invitation) InitiatorName() string {
	return i.ProfessionalName
}

// RoomDescriptor is the backend's description of a joined call room.
type RoomDescriptor struct {
	AppointmentID string `json:"appointmentId"`
	RoomID        string `json:"roomId"`
	RoomURL       string `json:"roomUrl,omitempty"`
}
