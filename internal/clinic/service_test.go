package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/models"
	"healthplus-server/internal/store"
)

type fixture struct {
	store   *store.MemoryStore
	svc     *Service
	doctor  models.Caller
	other   models.Caller
	patient models.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2025, 10, 1, 15, 0, 0, 0, time.UTC) }

	d := &models.Doctor{Name: "Dr. Vijay", Email: "vijay@health.plus", Specialization: "Cardiology"}
	require.NoError(t, d.SetPassword("123"))
	require.NoError(t, st.CreateDoctor(ctx, d))
	o := &models.Doctor{Name: "Dr. Ajith", Email: "ajith@health.plus", Specialization: "Pediatrics"}
	require.NoError(t, st.CreateDoctor(ctx, o))

	p, err := svc.RegisterPatient(ctx, Registration{
		PatientID: "P1001",
		Name:      "John Doe",
		Email:     "John@Example.com",
		Password:  "123",
	})
	require.NoError(t, err)

	return &fixture{
		store:   st,
		svc:     svc,
		doctor:  models.Caller{ID: d.ID, Role: models.RoleDoctor},
		other:   models.Caller{ID: o.ID, Role: models.RoleDoctor},
		patient: models.Caller{ID: p.ID, Role: models.RolePatient},
	}
}

func (f *fixture) visit(t *testing.T) *models.Visit {
	t.Helper()
	v, err := f.svc.CreateVisit(context.Background(), f.doctor, VisitInput{
		PatientID: f.patient.ID,
		VisitDate: "2025-09-28",
	})
	require.NoError(t, err)
	return v
}

func TestRegisterPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.AuthenticatePatient(ctx, "P1001", "john@example.com", "123")
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", p.Email)
	assert.Equal(t, models.DefaultProfilePic, p.ProfilePic)
	assert.NotEqual(t, "123", p.Password)

	_, err = f.svc.RegisterPatient(ctx, Registration{PatientID: "P2000", Name: "X", Email: "JOHN@example.com", Password: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.RegisterPatient(ctx, Registration{PatientID: "P1001", Name: "Y", Email: "y@example.com", Password: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.RegisterPatient(ctx, Registration{PatientID: "P3000", Name: "Z", Email: "z@example.com", Password: "x", DOB: "15/05/1985"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		patientID string
		email     string
		password  string
	}{
		{"wrong password", "P1001", "john@example.com", "nope"},
		{"wrong patient id", "P9999", "john@example.com", "123"},
		{"unknown email", "P1001", "ghost@example.com", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AuthenticatePatient(ctx, tt.patientID, tt.email, tt.password)
			assert.True(t, apperr.Is(err, apperr.KindAuth))
		})
	}

	d, err := f.svc.AuthenticateDoctor(ctx, "vijay@health.plus", "123")
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, d.ID)

	_, err = f.svc.AuthenticateDoctor(ctx, "vijay@health.plus", "1234")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	_, err = f.svc.AuthenticateDoctor(ctx, "nobody@health.plus", "123")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	me, err := f.svc.Profile(ctx, f.doctor)
	require.NoError(t, err)
	require.IsType(t, &models.Doctor{}, me)
	assert.Equal(t, "Dr. Vijay", me.(*models.Doctor).Name)

	me, err = f.svc.Profile(ctx, f.patient)
	require.NoError(t, err)
	require.IsType(t, &models.Patient{}, me)
	assert.Equal(t, "P1001", me.(*models.Patient).PatientID)

	_, err = f.svc.Profile(ctx, models.Caller{ID: "x", Role: "admin"})
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestSearchPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, err := f.svc.SearchPatients(ctx, f.doctor, "john")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "P1001", found[0].PatientID)

	found, err = f.svc.SearchPatients(ctx, f.doctor, "  ")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.svc.SearchPatients(ctx, f.patient, "john")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestUpdatePatientProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	phone := "555-0100"

	p, err := f.svc.UpdatePatientProfile(ctx, f.patient, f.patient.ID, models.PatientProfileUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, p.Phone)
	assert.Equal(t, "John Doe", p.Name)

	_, err = f.svc.UpdatePatientProfile(ctx, f.doctor, f.patient.ID, models.PatientProfileUpdate{Phone: &phone})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	blank := " "
	_, err = f.svc.UpdatePatientProfile(ctx, f.patient, f.patient.ID, models.PatientProfileUpdate{Name: &blank})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVisits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.visit(t)
	assert.Equal(t, f.doctor.ID, v.DoctorID)

	later, err := f.svc.CreateVisit(ctx, f.doctor, VisitInput{PatientID: f.patient.ID, FollowUpDate: "2025-10-12", Notes: "All clear."})
	require.NoError(t, err)
	assert.Equal(t, "2025-10-01", later.VisitDate)

	visits, err := f.svc.ListVisits(ctx, f.patient, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, later.ID, visits[0].ID)

	_, err = f.svc.ListVisits(ctx, f.other, f.patient.ID)
	assert.NoError(t, err)
	_, err = f.svc.ListVisits(ctx, models.Caller{ID: "someone", Role: models.RolePatient}, f.patient.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.CreateVisit(ctx, f.patient, VisitInput{PatientID: f.patient.ID})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.CreateVisit(ctx, f.doctor, VisitInput{PatientID: "missing"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.CreateVisit(ctx, f.doctor, VisitInput{PatientID: f.patient.ID, VisitDate: "2025-10-10", FollowUpDate: "2025-10-01"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPrescriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)

	p, err := f.svc.AddPrescription(ctx, f.doctor, v.ID, PrescriptionInput{
		MedicineName: "Vitamin D3",
		Dosage:       "1 tablet daily",
		Duration:     "90 days",
		StartDate:    "2025-09-28",
	})
	require.NoError(t, err)
	assert.Empty(t, p.DosesTaken)
	require.NotNil(t, p.AdherenceRate)
	assert.Equal(t, 0, *p.AdherenceRate)

	_, err = f.svc.AddPrescription(ctx, f.other, v.ID, PrescriptionInput{MedicineName: "X"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.AddPrescription(ctx, f.doctor, v.ID, PrescriptionInput{MedicineName: " "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	asNeeded, err := f.svc.AddPrescription(ctx, f.doctor, v.ID, PrescriptionInput{MedicineName: "Ibuprofen", Dosage: "as needed", Duration: "5 days"})
	require.NoError(t, err)
	assert.Equal(t, "2025-10-01", asNeeded.StartDate)
	assert.Nil(t, asNeeded.AdherenceRate)

	for _, day := range []string{"2025-09-28", "2025-09-29"} {
		_, err = f.svc.ToggleDose(ctx, f.patient, p.ID, day)
		require.NoError(t, err)
	}
	list, err := f.svc.ListPrescriptions(ctx, f.patient, v.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	rates := map[string]*int{}
	for _, item := range list {
		rates[item.ID] = item.AdherenceRate
	}
	require.NotNil(t, rates[p.ID])
	// 2 of 4 days since 2025-09-28.
	assert.Equal(t, 50, *rates[p.ID])
	assert.Nil(t, rates[asNeeded.ID])

	_, err = f.svc.ListPrescriptions(ctx, models.Caller{ID: "x", Role: models.RolePatient}, v.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestUpdatePrescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)
	p, err := f.svc.AddPrescription(ctx, f.doctor, v.ID, PrescriptionInput{MedicineName: "Cardio-Protect", Dosage: "1 tablet daily", Duration: "15 days"})
	require.NoError(t, err)

	dosage := "2 tablets daily"
	updated, err := f.svc.UpdatePrescription(ctx, f.doctor, p.ID, models.PrescriptionUpdate{Dosage: &dosage})
	require.NoError(t, err)
	assert.Equal(t, dosage, updated.Dosage)
	assert.Equal(t, "Cardio-Protect", updated.MedicineName)

	_, err = f.svc.UpdatePrescription(ctx, f.patient, p.ID, models.PrescriptionUpdate{Dosage: &dosage})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	bad := "tomorrow"
	_, err = f.svc.UpdatePrescription(ctx, f.doctor, p.ID, models.PrescriptionUpdate{StartDate: &bad})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.UpdatePrescription(ctx, f.doctor, "missing", models.PrescriptionUpdate{Dosage: &dosage})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestToggleDose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)
	p, err := f.svc.AddPrescription(ctx, f.doctor, v.ID, PrescriptionInput{MedicineName: "Vitamin D3", Dosage: "1 tablet daily", Duration: "90 days", StartDate: "2025-09-28"})
	require.NoError(t, err)

	toggled, err := f.svc.ToggleDose(ctx, f.patient, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-10-01"}, []string(toggled.DosesTaken))

	toggled, err = f.svc.ToggleDose(ctx, f.doctor, p.ID, "2025-10-01")
	require.NoError(t, err)
	assert.Empty(t, toggled.DosesTaken)

	_, err = f.svc.ToggleDose(ctx, f.other, p.ID, "2025-10-01")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.ToggleDose(ctx, f.patient, p.ID, "2025-09-27")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.ToggleDose(ctx, f.patient, p.ID, "Oct 1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.ToggleDose(ctx, f.patient, "missing", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
