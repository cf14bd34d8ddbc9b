// Package clinic covers the plain record workflows around the queue:
// registration and login, doctor listing, patient search and profiles,
// visits, prescriptions and dose tracking.
package clinic

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/derive"
	"healthplus-server/internal/models"
	"healthplus-server/internal/store"
)

// Service implements the clinic record operations.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a clinic Service.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

func (s *Service) today() string {
	return s.now().Format(models.DateLayout)
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a YYYY-MM-DD date", field)
	}
	return d, nil
}

// -- Accounts --

// Registration carries a new patient's details.
type Registration struct {
	PatientID string
	Name      string
	Email     string
	Password  string
	Phone     string
	DOB       string
	Address   string
}

// RegisterPatient creates a patient account. Email and patient id must be unused.
func (s *Service) RegisterPatient(ctx context.Context, r Registration) (*models.Patient, error) {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if _, err := s.store.FindPatientByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("Email already registered")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if r.DOB != "" {
		if _, err := parseDate("dob", r.DOB); err != nil {
			return nil, err
		}
	}

	p := &models.Patient{
		PatientID:  strings.TrimSpace(r.PatientID),
		Name:       strings.TrimSpace(r.Name),
		Email:      email,
		Phone:      r.Phone,
		DOB:        r.DOB,
		Address:    r.Address,
		ProfilePic: models.DefaultProfilePic,
	}
	if err := p.SetPassword(r.Password); err != nil {
		return nil, apperr.Store(err)
	}
	if err := s.store.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("patient_id", p.ID).Str("code", p.PatientID).Msg("patient registered")
	return p, nil
}

// AuthenticatePatient checks a patient's id, email and password.
func (s *Service) AuthenticatePatient(ctx context.Context, patientID, email, password string) (*models.Patient, error) {
	p, err := s.store.FindPatientByEmail(ctx, strings.TrimSpace(email))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if p.PatientID != strings.TrimSpace(patientID) || !p.CheckPassword(password) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	return p, nil
}

// AuthenticateDoctor checks a doctor's email and password.
func (s *Service) AuthenticateDoctor(ctx context.Context, email, password string) (*models.Doctor, error) {
	d, err := s.store.FindDoctorByEmail(ctx, strings.TrimSpace(email))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !d.CheckPassword(password) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	return d, nil
}

// Profile returns the caller's own record: a *models.Doctor or a *models.Patient.
func (s *Service) Profile(ctx context.Context, caller models.Caller) (any, error) {
	switch caller.Role {
	case models.RoleDoctor:
		return s.store.GetDoctor(ctx, caller.ID)
	case models.RolePatient:
		return s.store.GetPatient(ctx, caller.ID)
	default:
		return nil, apperr.Unauthorized("unknown role %q", caller.Role)
	}
}

// -- Doctors & patients --

// ListDoctors returns every doctor.
func (s *Service) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	return s.store.ListDoctors(ctx)
}

// SearchPatients lets a doctor look patients up by name or patient id.
func (s *Service) SearchPatients(ctx context.Context, caller models.Caller, q string) ([]models.Patient, error) {
	if caller.Role != models.RoleDoctor {
		return nil, apperr.Forbidden("only doctors can search patients")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Patient{}, nil
	}
	return s.store.SearchPatients(ctx, q)
}

// UpdatePatientProfile changes the caller's own profile fields.
func (s *Service) UpdatePatientProfile(ctx context.Context, caller models.Caller, patientID string, u models.PatientProfileUpdate) (*models.Patient, error) {
	if !caller.IsPatient(patientID) {
		return nil, apperr.Forbidden("patients can only update their own profile")
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	if u.DOB != nil && *u.DOB != "" {
		if _, err := parseDate("dob", *u.DOB); err != nil {
			return nil, err
		}
	}
	return s.store.UpdatePatient(ctx, patientID, u)
}

// -- Visits --

// VisitInput carries a new visit's details. The doctor is the caller.
type VisitInput struct {
	PatientID    string
	VisitDate    string
	FollowUpDate string
	Notes        string
}

// ListVisits returns a patient's visit history. Patients see their own; doctors see any.
func (s *Service) ListVisits(ctx context.Context, caller models.Caller, patientID string) ([]models.Visit, error) {
	if !caller.IsPatient(patientID) && caller.Role != models.RoleDoctor {
		return nil, apperr.Forbidden("not allowed to view these visits")
	}
	return s.store.ListVisitsByPatient(ctx, patientID)
}

// CreateVisit records a consultation by the calling doctor.
func (s *Service) CreateVisit(ctx context.Context, caller models.Caller, in VisitInput) (*models.Visit, error) {
	if caller.Role != models.RoleDoctor {
		return nil, apperr.Forbidden("only doctors can record visits")
	}
	if _, err := s.store.GetPatient(ctx, in.PatientID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("patient %s does not exist", in.PatientID)
		}
		return nil, err
	}

	v := &models.Visit{
		PatientID:    in.PatientID,
		DoctorID:     caller.ID,
		VisitDate:    in.VisitDate,
		FollowUpDate: in.FollowUpDate,
		Notes:        in.Notes,
	}
	if v.VisitDate == "" {
		v.VisitDate = s.today()
	}
	visitDate, err := parseDate("visitDate", v.VisitDate)
	if err != nil {
		return nil, err
	}
	if v.FollowUpDate != "" {
		followUp, err := parseDate("followUpDate", v.FollowUpDate)
		if err != nil {
			return nil, err
		}
		if followUp.Before(visitDate) {
			return nil, apperr.Validation("followUpDate cannot be before visitDate")
		}
	}

	if err := s.store.CreateVisit(ctx, v); err != nil {
		return nil, err
	}
	log.Info().Str("visit_id", v.ID).Str("doctor_id", v.DoctorID).Str("patient_id", v.PatientID).Msg("visit recorded")
	return v, nil
}

// -- Prescriptions --

// PrescriptionView is a prescription with its adherence rate, which is null
// when the dosage or duration does not allow one.
type PrescriptionView struct {
	models.Prescription
	AdherenceRate *int `json:"adherenceRate"`
}

func (s *Service) view(p models.Prescription) PrescriptionView {
	v := PrescriptionView{Prescription: p}
	if rate, ok := derive.AdherenceRate(p, s.now()); ok {
		v.AdherenceRate = &rate
	}
	return v
}

// PrescriptionInput carries a new medicine order.
type PrescriptionInput struct {
	MedicineName string
	Dosage       string
	Duration     string
	StartDate    string
}

// visitFor loads the visit and checks the caller may read it: its patient or any doctor.
func (s *Service) visitFor(ctx context.Context, caller models.Caller, visitID string) (*models.Visit, error) {
	v, err := s.store.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient(v.PatientID) && caller.Role != models.RoleDoctor {
		return nil, apperr.Forbidden("not allowed to access this visit")
	}
	return v, nil
}

// ListPrescriptions returns a visit's prescriptions with adherence rates.
func (s *Service) ListPrescriptions(ctx context.Context, caller models.Caller, visitID string) ([]PrescriptionView, error) {
	if _, err := s.visitFor(ctx, caller, visitID); err != nil {
		return nil, err
	}
	ps, err := s.store.ListPrescriptionsByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	out := make([]PrescriptionView, 0, len(ps))
	for _, p := range ps {
		out = append(out, s.view(p))
	}
	return out, nil
}

// AddPrescription adds a medicine to a visit. Only the visit's doctor may do so.
func (s *Service) AddPrescription(ctx context.Context, caller models.Caller, visitID string, in PrescriptionInput) (*PrescriptionView, error) {
	v, err := s.visitFor(ctx, caller, visitID)
	if err != nil {
		return nil, err
	}
	if !caller.IsDoctor(v.DoctorID) {
		return nil, apperr.Forbidden("only the visit's doctor can prescribe")
	}
	if strings.TrimSpace(in.MedicineName) == "" {
		return nil, apperr.Validation("medicineName is required")
	}
	if in.StartDate == "" {
		in.StartDate = s.today()
	}
	if _, err := parseDate("startDate", in.StartDate); err != nil {
		return nil, err
	}

	p := &models.Prescription{
		VisitID:      visitID,
		MedicineName: strings.TrimSpace(in.MedicineName),
		Dosage:       strings.TrimSpace(in.Dosage),
		Duration:     strings.TrimSpace(in.Duration),
		StartDate:    in.StartDate,
		DosesTaken:   []string{},
	}
	if err := s.store.CreatePrescription(ctx, p); err != nil {
		return nil, err
	}
	view := s.view(*p)
	return &view, nil
}

// UpdatePrescription edits medicine fields. Only the visit's doctor may do so.
func (s *Service) UpdatePrescription(ctx context.Context, caller models.Caller, id string, u models.PrescriptionUpdate) (*PrescriptionView, error) {
	p, err := s.store.GetPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.visitFor(ctx, caller, p.VisitID)
	if err != nil {
		return nil, err
	}
	if !caller.IsDoctor(v.DoctorID) {
		return nil, apperr.Forbidden("only the visit's doctor can change a prescription")
	}
	if u.MedicineName != nil && strings.TrimSpace(*u.MedicineName) == "" {
		return nil, apperr.Validation("medicineName cannot be empty")
	}
	if u.StartDate != nil {
		if _, err := parseDate("startDate", *u.StartDate); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdatePrescription(ctx, id, u)
	if err != nil {
		return nil, err
	}
	view := s.view(*updated)
	return &view, nil
}

// ToggleDose marks date as taken, or unmarks it if already taken. An empty
// date means today. The visit's patient and doctor may toggle.
func (s *Service) ToggleDose(ctx context.Context, caller models.Caller, id, date string) (*PrescriptionView, error) {
	p, err := s.store.GetPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVisit(ctx, p.VisitID)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient(v.PatientID) && !caller.IsDoctor(v.DoctorID) {
		return nil, apperr.Forbidden("not allowed to track doses for this prescription")
	}

	if date == "" {
		date = s.today()
	}
	day, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	if start, err := time.Parse(models.DateLayout, p.StartDate); err == nil && day.Before(start) {
		return nil, apperr.Validation("date %s is before the prescription start date %s", date, p.StartDate)
	}

	updated, err := s.store.ToggleDose(ctx, id, day.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	view := s.view(*updated)
	return &view, nil
}
