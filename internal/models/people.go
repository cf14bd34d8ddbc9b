package models

// DefaultProfilePic is assigned to patients who never uploaded a picture.
const DefaultProfilePic = "https://cdn-icons-png.flaticon.com/512/147/147144.png"

// Doctor is a clinician who owns a queue.
type Doctor struct {
	BaseModel
	Credentials
	Name           string `gorm:"size:150;not null" json:"name"`
	Email          string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Specialization string `gorm:"size:100" json:"specialization,omitempty"`
	Availability   string `gorm:"size:100" json:"availability,omitempty"`
	ProfilePic     string `gorm:"size:512" json:"profilePic,omitempty"`
}

// Patient is a registered clinic patient. PatientID is the human-readable
// identifier used at login, e.g. P1001.
type Patient struct {
	BaseModel
	Credentials
	PatientID  string `gorm:"column:patient_code;uniqueIndex;size:32;not null" json:"patientId"`
	Name       string `gorm:"size:150;not null" json:"name"`
	Email      string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone      string `gorm:"size:32" json:"phone,omitempty"`
	DOB        string `gorm:"size:10" json:"dob,omitempty"`
	Address    string `gorm:"size:255" json:"address,omitempty"`
	ProfilePic string `gorm:"size:512" json:"profilePic,omitempty"`
}

// PatientProfileUpdate lists the profile fields a patient may change. Nil fields are left alone.
type PatientProfileUpdate struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	DOB        *string `json:"dob"`
	Address    *string `json:"address"`
	ProfilePic *string `json:"profilePic"`
}

// Apply copies the set fields onto p.
func (u PatientProfileUpdate) Apply(p *Patient) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.DOB != nil {
		p.DOB = *u.DOB
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.ProfilePic != nil {
		p.ProfilePic = *u.ProfilePic
	}
}
