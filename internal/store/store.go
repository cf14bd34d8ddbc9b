// Package store is the record store: keyed persistence for doctors, patients,
// visits, prescriptions and queue entries.
//
// Queue mutations are exposed as single atomic operations rather than
// read/write pairs, so that token assignment and the one-serving-entry rule
// hold under concurrent callers. Returned records are copies.
package store

import (
	"context"

	"healthplus-server/internal/models"
)

// DoctorRepository persists doctors.
type DoctorRepository interface {
	CreateDoctor(ctx context.Context, d *models.Doctor) error
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	FindDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	DeleteDoctors(ctx context.Context) (int64, error)
}

// PatientRepository persists patients.
type PatientRepository interface {
	CreatePatient(ctx context.Context, p *models.Patient) error
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	FindPatientByEmail(ctx context.Context, email string) (*models.Patient, error)
	// SearchPatients matches q case-insensitively against name or patient id.
	SearchPatients(ctx context.Context, q string) ([]models.Patient, error)
	UpdatePatient(ctx context.Context, id string, u models.PatientProfileUpdate) (*models.Patient, error)
	DeletePatients(ctx context.Context) (int64, error)
}

// VisitRepository persists visits.
type VisitRepository interface {
	CreateVisit(ctx context.Context, v *models.Visit) error
	GetVisit(ctx context.Context, id string) (*models.Visit, error)
	// ListVisitsByPatient returns the patient's visits, most recent visit date first.
	ListVisitsByPatient(ctx context.Context, patientID string) ([]models.Visit, error)
	DeleteVisits(ctx context.Context) (int64, error)
}

// PrescriptionRepository persists prescriptions.
type PrescriptionRepository interface {
	CreatePrescription(ctx context.Context, p *models.Prescription) error
	GetPrescription(ctx context.Context, id string) (*models.Prescription, error)
	ListPrescriptionsByVisit(ctx context.Context, visitID string) ([]models.Prescription, error)
	UpdatePrescription(ctx context.Context, id string, u models.PrescriptionUpdate) (*models.Prescription, error)
	// ToggleDose flips date in the prescription's dose set in one update.
	// Concurrent toggles on the same prescription are last-write-wins.
	ToggleDose(ctx context.Context, id, date string) (*models.Prescription, error)
	DeletePrescriptions(ctx context.Context) (int64, error)
}

// AdvanceResult reports what a call-next step changed. Either field may be nil.
type AdvanceResult struct {
	Finished *models.QueueEntry
	Serving  *models.QueueEntry
}

// Advanced reports whether anything changed.
func (r AdvanceResult) Advanced() bool {
	return r.Finished != nil || r.Serving != nil
}

// QueueRepository persists queue entries. Every mutation is serialized per doctor.
type QueueRepository interface {
	// Enqueue creates a waiting entry with the next token for the doctor.
	// It fails with a validation error if the patient already holds an
	// active entry for that doctor.
	Enqueue(ctx context.Context, doctorID, patientID string) (*models.QueueEntry, error)
	GetQueueEntry(ctx context.Context, id string) (*models.QueueEntry, error)
	// ActiveQueue returns the doctor's entries that are not done, by ascending token,
	// with the patient attached.
	ActiveQueue(ctx context.Context, doctorID string) ([]models.QueueEntry, error)
	// Advance moves the serving entry to done and the lowest waiting entry to serving.
	Advance(ctx context.Context, doctorID string) (AdvanceResult, error)
	// FinishServing moves the serving entry, if any, to done.
	FinishServing(ctx context.Context, doctorID string) (*models.QueueEntry, error)
	// UpdateTriage overwrites complaint and symptoms while the entry is not done.
	UpdateTriage(ctx context.Context, id, complaint, symptoms string) (*models.QueueEntry, error)
	DeleteQueueEntries(ctx context.Context) (int64, error)
}

// Store aggregates every repository.
type Store interface {
	DoctorRepository
	PatientRepository
	VisitRepository
	PrescriptionRepository
	QueueRepository
}
