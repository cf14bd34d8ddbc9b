package models

// QueueStatus represents the state of a queue entry
type QueueStatus string

const (
	QueueWaiting QueueStatus = "waiting"
	QueueServing QueueStatus = "serving"
	QueueDone    QueueStatus = "done"
)

// CanBecome reports whether moving from s to next respects waiting -> serving -> done.
func (s QueueStatus) CanBecome(next QueueStatus) bool {
	switch s {
	case QueueWaiting:
		return next == QueueServing || next == QueueDone
	case QueueServing:
		return next == QueueDone
	default:
		return false
	}
}

// QueueEntry is one patient's claim on one doctor's attention.
type QueueEntry struct {
	BaseModel
	PatientID   string      `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID    string      `gorm:"size:36;not null;uniqueIndex:idx_queue_doctor_token,priority:1" json:"doctorId"`
	TokenNumber int         `gorm:"not null;uniqueIndex:idx_queue_doctor_token,priority:2" json:"tokenNumber"`
	Status      QueueStatus `gorm:"size:10;index;default:'waiting'" json:"status"`
	Complaint   string      `gorm:"type:text" json:"complaint"`
	Symptoms    string      `gorm:"type:text" json:"symptoms"`

	// Relations
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
}
