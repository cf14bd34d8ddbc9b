// Package seed loads the demo clinic: three doctors, two patients and one
// visit with a prescription for each patient. Every account uses the
// password "123".
package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"healthplus-server/internal/models"
	"healthplus-server/internal/store"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "123"

// Summary counts the records written by Run.
type Summary struct {
	Doctors       int `json:"doctors"`
	Patients      int `json:"patients"`
	Visits        int `json:"visits"`
	Prescriptions int `json:"prescriptions"`
}

var doctors = []models.Doctor{
	{Name: "Dr. Vijay", Email: "vijay@health.plus", Specialization: "Cardiology", Availability: "9:00 AM - 1:00 PM",
		ProfilePic: "https://i.pinimg.com/736x/65/80/dd/6580dd70f54da20126ee421dbf73ad2f.jpg"},
	{Name: "Dr. Ajith", Email: "ajith@health.plus", Specialization: "Pediatrics", Availability: "10:00 AM - 3:00 PM",
		ProfilePic: "https://alchetron.com/cdn/ajith-kumar-d8c190e8-de5b-4fd7-b26e-cfa268b5680-resize-750.jpeg"},
	{Name: "Dr. Vikram", Email: "vikram@health.plus", Specialization: "Dermatology", Availability: "1:00 PM - 5:00 PM",
		ProfilePic: "https://cinetown.s3.ap-south-1.amazonaws.com/people/profile_img/1697344211.jpeg"},
}

var patients = []models.Patient{
	{PatientID: "P1001", Name: "John Doe", Email: "john@example.com", Phone: "123-456-7890", DOB: "1985-05-15", Address: "Porur"},
	{PatientID: "P1002", Name: "Smith Jain", Email: "smith@example.com", Phone: "098-765-4321", DOB: "1992-08-22", Address: "Mogappair"},
}

type visitSeed struct {
	patient, doctor int
	visit           models.Visit
	prescription    models.Prescription
}

var visits = []visitSeed{
	{
		patient: 0, doctor: 1,
		visit:        models.Visit{VisitDate: "2025-09-28", FollowUpDate: "2025-10-12", Notes: "Routine check-up was all clear."},
		prescription: models.Prescription{MedicineName: "Vitamin D3", Dosage: "1 tablet daily", Duration: "90 days", StartDate: "2025-09-28"},
	},
	{
		patient: 1, doctor: 0,
		visit:        models.Visit{VisitDate: "2025-09-20", FollowUpDate: "2025-10-05", Notes: "Patient reported mild chest discomfort. EKG results are normal."},
		prescription: models.Prescription{MedicineName: "Cardio-Protect", Dosage: "1 tablet daily", Duration: "15 days", StartDate: "2025-09-20"},
	},
}

// Run wipes every record, queue entries included, and writes the demo data.
func Run(ctx context.Context, st store.Store) (Summary, error) {
	if err := wipe(ctx, st); err != nil {
		return Summary{}, err
	}

	var hashed models.Credentials
	if err := hashed.SetPassword(DemoPassword); err != nil {
		return Summary{}, fmt.Errorf("hash demo password: %w", err)
	}

	var sum Summary
	doctorIDs := make([]string, len(doctors))
	for i, d := range doctors {
		d.Credentials = hashed
		if err := st.CreateDoctor(ctx, &d); err != nil {
			return sum, fmt.Errorf("seed doctor %s: %w", d.Email, err)
		}
		doctorIDs[i] = d.ID
		sum.Doctors++
	}

	patientIDs := make([]string, len(patients))
	for i, p := range patients {
		p.Credentials = hashed
		p.ProfilePic = models.DefaultProfilePic
		if err := st.CreatePatient(ctx, &p); err != nil {
			return sum, fmt.Errorf("seed patient %s: %w", p.PatientID, err)
		}
		patientIDs[i] = p.ID
		sum.Patients++
	}

	for _, vs := range visits {
		v := vs.visit
		v.PatientID = patientIDs[vs.patient]
		v.DoctorID = doctorIDs[vs.doctor]
		if err := st.CreateVisit(ctx, &v); err != nil {
			return sum, fmt.Errorf("seed visit: %w", err)
		}
		sum.Visits++

		p := vs.prescription
		p.VisitID = v.ID
		p.DosesTaken = []string{}
		if err := st.CreatePrescription(ctx, &p); err != nil {
			return sum, fmt.Errorf("seed prescription %s: %w", p.MedicineName, err)
		}
		sum.Prescriptions++
	}

	log.Info().
		Int("doctors", sum.Doctors).
		Int("patients", sum.Patients).
		Int("visits", sum.Visits).
		Int("prescriptions", sum.Prescriptions).
		Msg("database seeded")
	return sum, nil
}

// wipe deletes children before parents so foreign keys never dangle.
func wipe(ctx context.Context, st store.Store) error {
	steps := []struct {
		what string
		fn   func(context.Context) (int64, error)
	}{
		{"queue entries", st.DeleteQueueEntries},
		{"prescriptions", st.DeletePrescriptions},
		{"visits", st.DeleteVisits},
		{"patients", st.DeletePatients},
		{"doctors", st.DeleteDoctors},
	}
	for _, step := range steps {
		n, err := step.fn(ctx)
		if err != nil {
			return fmt.Errorf("clear %s: %w", step.what, err)
		}
		log.Debug().Int64("deleted", n).Str("table", step.what).Msg("cleared")
	}
	return nil
}
