package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/derive"
	"healthplus-server/internal/models"
)

// GormStore implements Store on top of a relational database.
//
// Queue mutations run in a transaction that first locks the doctor's row
// (SELECT ... FOR UPDATE). That lock is the per-doctor serialization point for
// token assignment and the single-serving rule, across every server process.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps gorm failures onto the application error taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Validation("%s violates a uniqueness constraint", what)
	default:
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.Store(err)
	}
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// -- Doctors --

func (s *GormStore) CreateDoctor(ctx context.Context, d *models.Doctor) error {
	return translate(s.db.WithContext(ctx).Create(d).Error, "doctor")
}

func (s *GormStore) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err, "doctor")
	}
	return &d, nil
}

func (s *GormStore) FindDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&d).Error; err != nil {
		return nil, translate(err, "doctor")
	}
	return &d, nil
}

func (s *GormStore) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	var doctors []models.Doctor
	if err := s.db.WithContext(ctx).Order("name asc").Find(&doctors).Error; err != nil {
		return nil, translate(err, "doctors")
	}
	return doctors, nil
}

func (s *GormStore) DeleteDoctors(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Doctor{})
	return res.RowsAffected, translate(res.Error, "doctors")
}

// -- Patients --

func (s *GormStore) CreatePatient(ctx context.Context, p *models.Patient) error {
	return translate(s.db.WithContext(ctx).Create(p).Error, "patient")
}

func (s *GormStore) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "patient")
	}
	return &p, nil
}

func (s *GormStore) FindPatientByEmail(ctx context.Context, email string) (*models.Patient, error) {
	var p models.Patient
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&p).Error; err != nil {
		return nil, translate(err, "patient")
	}
	return &p, nil
}

func (s *GormStore) SearchPatients(ctx context.Context, q string) ([]models.Patient, error) {
	pattern := likePattern(q)
	var patients []models.Patient
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(patient_code) LIKE ?", pattern, pattern).
		Order("patient_code asc").
		Find(&patients).Error
	if err != nil {
		return nil, translate(err, "patients")
	}
	return patients, nil
}

func (s *GormStore) UpdatePatient(ctx context.Context, id string, u models.PatientProfileUpdate) (*models.Patient, error) {
	var p models.Patient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		u.Apply(&p)
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, translate(err, "patient")
	}
	return &p, nil
}

func (s *GormStore) DeletePatients(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Patient{})
	return res.RowsAffected, translate(res.Error, "patients")
}

// -- Visits --

func (s *GormStore) CreateVisit(ctx context.Context, v *models.Visit) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(v).Error, "visit")
}

func (s *GormStore) GetVisit(ctx context.Context, id string) (*models.Visit, error) {
	var v models.Visit
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err, "visit")
	}
	return &v, nil
}

func (s *GormStore) ListVisitsByPatient(ctx context.Context, patientID string) ([]models.Visit, error) {
	var visits []models.Visit
	err := s.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("visit_date desc").Order("created_at desc").
		Find(&visits).Error
	if err != nil {
		return nil, translate(err, "visits")
	}
	return visits, nil
}

func (s *GormStore) DeleteVisits(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Visit{})
	return res.RowsAffected, translate(res.Error, "visits")
}

// -- Prescriptions --

func (s *GormStore) CreatePrescription(ctx context.Context, p *models.Prescription) error {
	if p.DosesTaken == nil {
		p.DosesTaken = []string{}
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error, "prescription")
}

func (s *GormStore) GetPrescription(ctx context.Context, id string) (*models.Prescription, error) {
	var p models.Prescription
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "prescription")
	}
	return &p, nil
}

func (s *GormStore) ListPrescriptionsByVisit(ctx context.Context, visitID string) ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	err := s.db.WithContext(ctx).Where("visit_id = ?", visitID).Order("created_at asc").Find(&prescriptions).Error
	if err != nil {
		return nil, translate(err, "prescriptions")
	}
	return prescriptions, nil
}

func (s *GormStore) UpdatePrescription(ctx context.Context, id string, u models.PrescriptionUpdate) (*models.Prescription, error) {
	var p models.Prescription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		u.Apply(&p)
		return tx.Omit(clause.Associations).Save(&p).Error
	})
	if err != nil {
		return nil, translate(err, "prescription")
	}
	return &p, nil
}

func (s *GormStore) ToggleDose(ctx context.Context, id, date string) (*models.Prescription, error) {
	var p models.Prescription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		p.DosesTaken = derive.ToggleDoseTaken(p.DosesTaken, date)
		return tx.Model(&p).Update("doses_taken", p.DosesTaken).Error
	})
	if err != nil {
		return nil, translate(err, "prescription")
	}
	return &p, nil
}

func (s *GormStore) DeletePrescriptions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Prescription{})
	return res.RowsAffected, translate(res.Error, "prescriptions")
}

// -- Queue --

// lockDoctor takes the per-doctor row lock inside tx.
func lockDoctor(tx *gorm.DB, doctorID string) error {
	var d models.Doctor
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&d, "id = ?", doctorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation("doctor %s does not exist", doctorID)
	}
	return err
}

func (s *GormStore) Enqueue(ctx context.Context, doctorID, patientID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDoctor(tx, doctorID); err != nil {
			return err
		}

		var patientCount int64
		if err := tx.Model(&models.Patient{}).Where("id = ?", patientID).Count(&patientCount).Error; err != nil {
			return err
		}
		if patientCount == 0 {
			return apperr.Validation("patient %s does not exist", patientID)
		}

		var held models.QueueEntry
		err := tx.Where("doctor_id = ? AND patient_id = ? AND status <> ?", doctorID, patientID, models.QueueDone).
			First(&held).Error
		if err == nil {
			return apperr.Validation("patient already holds token %d in this queue", held.TokenNumber)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxToken int
		if err := tx.Model(&models.QueueEntry{}).
			Where("doctor_id = ?", doctorID).
			Select("COALESCE(MAX(token_number), 0)").
			Scan(&maxToken).Error; err != nil {
			return err
		}

		entry = models.QueueEntry{
			DoctorID:    doctorID,
			PatientID:   patientID,
			TokenNumber: maxToken + 1,
			Status:      models.QueueWaiting,
		}
		return tx.Omit(clause.Associations).Create(&entry).Error
	})
	if err != nil {
		return nil, translate(err, "queue entry")
	}
	return &entry, nil
}

func (s *GormStore) GetQueueEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	var e models.QueueEntry
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err, "queue entry")
	}
	return &e, nil
}

func activeQuery(tx *gorm.DB, doctorID string) *gorm.DB {
	return tx.Where("doctor_id = ? AND status <> ?", doctorID, models.QueueDone).Order("token_number asc")
}

func (s *GormStore) ActiveQueue(ctx context.Context, doctorID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := activeQuery(s.db.WithContext(ctx), doctorID).Preload("Patient").Find(&entries).Error; err != nil {
		return nil, translate(err, "queue")
	}
	return entries, nil
}

func (s *GormStore) Advance(ctx context.Context, doctorID string) (AdvanceResult, error) {
	var res AdvanceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDoctor(tx, doctorID); err != nil {
			return err
		}
		var active []models.QueueEntry
		if err := activeQuery(tx, doctorID).Find(&active).Error; err != nil {
			return err
		}

		var next *models.QueueEntry
		for i := range active {
			switch {
			case active[i].Status == models.QueueServing && res.Finished == nil:
				res.Finished = &active[i]
			case active[i].Status == models.QueueWaiting && next == nil:
				next = &active[i]
			}
		}
		if res.Finished != nil {
			if err := setStatus(tx, res.Finished, models.QueueDone); err != nil {
				return err
			}
		}
		if next != nil {
			if err := setStatus(tx, next, models.QueueServing); err != nil {
				return err
			}
			res.Serving = next
		}
		return nil
	})
	if err != nil {
		return AdvanceResult{}, translate(err, "queue")
	}
	return res, nil
}

func (s *GormStore) FinishServing(ctx context.Context, doctorID string) (*models.QueueEntry, error) {
	var finished *models.QueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDoctor(tx, doctorID); err != nil {
			return err
		}
		var serving models.QueueEntry
		err := tx.Where("doctor_id = ? AND status = ?", doctorID, models.QueueServing).
			Order("token_number asc").First(&serving).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := setStatus(tx, &serving, models.QueueDone); err != nil {
			return err
		}
		finished = &serving
		return nil
	})
	if err != nil {
		return nil, translate(err, "queue")
	}
	return finished, nil
}

// setStatus is a conditional update that only applies while the row still has
// the status that was read.
func setStatus(tx *gorm.DB, e *models.QueueEntry, status models.QueueStatus) error {
	if !e.Status.CanBecome(status) {
		return apperr.Validation("queue entry %s cannot move from %s to %s", e.ID, e.Status, status)
	}
	res := tx.Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", e.ID, e.Status).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.Store(errors.New("queue entry changed concurrently"))
	}
	e.Status = status
	return nil
}

func (s *GormStore) UpdateTriage(ctx context.Context, id, complaint, symptoms string) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "id = ?", id).Error; err != nil {
			return err
		}
		if e.Status == models.QueueDone {
			return apperr.Validation("queue entry %s is already done", id)
		}
		e.Complaint = complaint
		e.Symptoms = symptoms
		return tx.Model(&e).Updates(map[string]any{"complaint": complaint, "symptoms": symptoms}).Error
	})
	if err != nil {
		return nil, translate(err, "queue entry")
	}
	return &e, nil
}

func (s *GormStore) DeleteQueueEntries(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.QueueEntry{})
	return res.RowsAffected, translate(res.Error, "queue entries")
}
