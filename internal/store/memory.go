package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/derive"
	"healthplus-server/internal/models"
)

// MemoryStore keeps every record in process memory. A single mutex makes each
// operation atomic, which is enough to serialize queue mutations per doctor.
type MemoryStore struct {
	mu            sync.Mutex
	doctors       map[string]models.Doctor
	patients      map[string]models.Patient
	visits        map[string]models.Visit
	prescriptions map[string]models.Prescription
	queue         map[string]models.QueueEntry
	now           func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:       make(map[string]models.Doctor),
		patients:      make(map[string]models.Patient),
		visits:        make(map[string]models.Visit),
		prescriptions: make(map[string]models.Prescription),
		queue:         make(map[string]models.QueueEntry),
		now:           time.Now,
	}
}

func (m *MemoryStore) stamp(b *models.BaseModel) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := m.now()
	b.CreatedAt = now
	b.UpdatedAt = now
}

// -- Doctors --

func (m *MemoryStore) CreateDoctor(_ context.Context, d *models.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return apperr.Validation("email %s is already registered", d.Email)
		}
	}
	m.stamp(&d.BaseModel)
	m.doctors[d.ID] = *d
	return nil
}

func (m *MemoryStore) GetDoctor(_ context.Context, id string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor %s not found", id)
	}
	return &d, nil
}

func (m *MemoryStore) FindDoctorByEmail(_ context.Context, email string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doctors {
		if strings.EqualFold(d.Email, email) {
			return &d, nil
		}
	}
	return nil, apperr.NotFound("doctor not found")
}

func (m *MemoryStore) ListDoctors(_ context.Context) ([]models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) DeleteDoctors(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.doctors))
	m.doctors = make(map[string]models.Doctor)
	return n, nil
}

// -- Patients --

func (m *MemoryStore) CreatePatient(_ context.Context, p *models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if strings.EqualFold(existing.Email, p.Email) {
			return apperr.Validation("email %s is already registered", p.Email)
		}
		if existing.PatientID == p.PatientID {
			return apperr.Validation("patient id %s is already registered", p.PatientID)
		}
	}
	m.stamp(&p.BaseModel)
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPatient(_ context.Context, id string) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	return &p, nil
}

func (m *MemoryStore) FindPatientByEmail(_ context.Context, email string) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *MemoryStore) SearchPatients(_ context.Context, q string) ([]models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(q)
	out := []models.Patient{}
	for _, p := range m.patients {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.PatientID), needle) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

func (m *MemoryStore) UpdatePatient(_ context.Context, id string, u models.PatientProfileUpdate) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	u.Apply(&p)
	p.UpdatedAt = m.now()
	m.patients[id] = p
	return &p, nil
}

func (m *MemoryStore) DeletePatients(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.patients))
	m.patients = make(map[string]models.Patient)
	return n, nil
}

// -- Visits --

func (m *MemoryStore) CreateVisit(_ context.Context, v *models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(&v.BaseModel)
	stored := *v
	stored.Patient, stored.Doctor = nil, nil
	m.visits[v.ID] = stored
	return nil
}

func (m *MemoryStore) GetVisit(_ context.Context, id string) (*models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	return &v, nil
}

func (m *MemoryStore) ListVisitsByPatient(_ context.Context, patientID string) ([]models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Visit{}
	for _, v := range m.visits {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VisitDate != out[j].VisitDate {
			return out[i].VisitDate > out[j].VisitDate
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) DeleteVisits(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.visits))
	m.visits = make(map[string]models.Visit)
	return n, nil
}

// -- Prescriptions --

func (m *MemoryStore) CreatePrescription(_ context.Context, p *models.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.DosesTaken == nil {
		p.DosesTaken = []string{}
	}
	m.stamp(&p.BaseModel)
	stored := *p
	stored.Visit = nil
	stored.DosesTaken = append([]string{}, p.DosesTaken...)
	m.prescriptions[p.ID] = stored
	return nil
}

func (m *MemoryStore) GetPrescription(_ context.Context, id string) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	return copyPrescription(p), nil
}

func (m *MemoryStore) ListPrescriptionsByVisit(_ context.Context, visitID string) ([]models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Prescription{}
	for _, p := range m.prescriptions {
		if p.VisitID == visitID {
			out = append(out, *copyPrescription(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdatePrescription(_ context.Context, id string, u models.PrescriptionUpdate) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	u.Apply(&p)
	p.UpdatedAt = m.now()
	m.prescriptions[id] = p
	return copyPrescription(p), nil
}

func (m *MemoryStore) ToggleDose(_ context.Context, id, date string) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	p.DosesTaken = derive.ToggleDoseTaken(p.DosesTaken, date)
	p.UpdatedAt = m.now()
	m.prescriptions[id] = p
	return copyPrescription(p), nil
}

func (m *MemoryStore) DeletePrescriptions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.prescriptions))
	m.prescriptions = make(map[string]models.Prescription)
	return n, nil
}

func copyPrescription(p models.Prescription) *models.Prescription {
	p.DosesTaken = append([]string{}, p.DosesTaken...)
	return &p
}

// -- Queue --

func (m *MemoryStore) Enqueue(_ context.Context, doctorID, patientID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[doctorID]; !ok {
		return nil, apperr.Validation("doctor %s does not exist", doctorID)
	}
	if _, ok := m.patients[patientID]; !ok {
		return nil, apperr.Validation("patient %s does not exist", patientID)
	}

	maxToken := 0
	for _, e := range m.queue {
		if e.DoctorID != doctorID {
			continue
		}
		if e.PatientID == patientID && e.Status != models.QueueDone {
			return nil, apperr.Validation("patient already holds token %d in this queue", e.TokenNumber)
		}
		maxToken = max(maxToken, e.TokenNumber)
	}

	e := models.QueueEntry{
		DoctorID:    doctorID,
		PatientID:   patientID,
		TokenNumber: maxToken + 1,
		Status:      models.QueueWaiting,
	}
	m.stamp(&e.BaseModel)
	m.queue[e.ID] = e
	return &e, nil
}

func (m *MemoryStore) GetQueueEntry(_ context.Context, id string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queue[id]
	if !ok {
		return nil, apperr.NotFound("queue entry %s not found", id)
	}
	return &e, nil
}

func (m *MemoryStore) ActiveQueue(_ context.Context, doctorID string) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(doctorID, true), nil
}

// activeLocked returns the doctor's active entries in token order. Callers hold m.mu.
func (m *MemoryStore) activeLocked(doctorID string, withPatient bool) []models.QueueEntry {
	var entries []models.QueueEntry
	for _, e := range m.queue {
		if e.DoctorID == doctorID {
			entries = append(entries, e)
		}
	}
	active := derive.SortActive(entries)
	if withPatient {
		for i := range active {
			if p, ok := m.patients[active[i].PatientID]; ok {
				active[i].Patient = &p
			}
		}
	}
	return active
}

func (m *MemoryStore) Advance(_ context.Context, doctorID string) (AdvanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res AdvanceResult
	var next *models.QueueEntry
	for _, e := range m.activeLocked(doctorID, false) {
		switch {
		case e.Status == models.QueueServing && res.Finished == nil:
			finished := m.transitionLocked(e, models.QueueDone)
			res.Finished = &finished
		case e.Status == models.QueueWaiting && next == nil:
			waiting := e
			next = &waiting
		}
	}
	if next != nil {
		serving := m.transitionLocked(*next, models.QueueServing)
		res.Serving = &serving
	}
	return res, nil
}

func (m *MemoryStore) FinishServing(_ context.Context, doctorID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.activeLocked(doctorID, false) {
		if e.Status == models.QueueServing {
			finished := m.transitionLocked(e, models.QueueDone)
			return &finished, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) transitionLocked(e models.QueueEntry, status models.QueueStatus) models.QueueEntry {
	e.Status = status
	e.UpdatedAt = m.now()
	m.queue[e.ID] = e
	return e
}

func (m *MemoryStore) UpdateTriage(_ context.Context, id, complaint, symptoms string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queue[id]
	if !ok {
		return nil, apperr.NotFound("queue entry %s not found", id)
	}
	if e.Status == models.QueueDone {
		return nil, apperr.Validation("queue entry %s is already done", id)
	}
	e.Complaint = complaint
	e.Symptoms = symptoms
	e.UpdatedAt = m.now()
	m.queue[id] = e
	return &e, nil
}

func (m *MemoryStore) DeleteQueueEntries(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.queue))
	m.queue = make(map[string]models.QueueEntry)
	return n, nil
}
