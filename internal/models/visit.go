package models

import (
	"gorm.io/datatypes"
)

// DateLayout is the calendar-date format used for visit, follow-up, start and dose dates.
const DateLayout = "2006-01-02"

// Visit is one consultation between a patient and a doctor.
type Visit struct {
	BaseModel
	PatientID    string `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID     string `gorm:"size:36;index;not null" json:"doctorId"`
	VisitDate    string `gorm:"size:10;index" json:"visitDate"`
	FollowUpDate string `gorm:"size:10" json:"followUpDate,omitempty"`
	Notes        string `gorm:"type:text" json:"notes"`

	// Relations
	Patient *Patient `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
}

// Prescription is one medicine order tied to a visit.
type Prescription struct {
	BaseModel
	VisitID      string                      `gorm:"size:36;index;not null" json:"visitId"`
	MedicineName string                      `gorm:"size:150;not null" json:"medicineName"`
	Dosage       string                      `gorm:"size:150" json:"dosage"`
	Duration     string                      `gorm:"size:100" json:"duration"`
	StartDate    string                      `gorm:"size:10" json:"startDate"`
	DosesTaken   datatypes.JSONSlice[string] `json:"dosesTaken"`

	Visit *Visit `gorm:"foreignKey:VisitID" json:"-"`
}

// PrescriptionUpdate lists the medicine fields a doctor may edit. Nil fields are left alone.
type PrescriptionUpdate struct {
	MedicineName *string `json:"medicineName"`
	Dosage       *string `json:"dosage"`
	Duration     *string `json:"duration"`
	StartDate    *string `json:"startDate"`
}

// Apply copies the set fields onto p.
func (u PrescriptionUpdate) Apply(p *Prescription) {
	if u.MedicineName != nil {
		p.MedicineName = *u.MedicineName
	}
	if u.Dosage != nil {
		p.Dosage = *u.Dosage
	}
	if u.Duration != nil {
		p.Duration = *u.Duration
	}
	if u.StartDate != nil {
		p.StartDate = *u.StartDate
	}
}
