package handlers

import (
	"github.com/gin-gonic/gin"

	"healthplus-server/internal/clinic"
	"healthplus-server/internal/models"
	"healthplus-server/internal/utils"
)

// UserHandler handles doctor listing and patient records.
type UserHandler struct {
	Clinic *clinic.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *clinic.Service) *UserHandler {
	return &UserHandler{Clinic: svc}
}

// UpdatePatientRequest represents the editable profile fields. Omitted fields are left unchanged.
type UpdatePatientRequest struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	DOB        *string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	Address    *string `json:"address"`
	ProfilePic *string `json:"profilePic"`
}

// GetDoctors returns every doctor. Accessible by all authenticated users.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Clinic.ListDoctors(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// SearchPatients finds patients by name or patient id.
func (h *UserHandler) SearchPatients(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	patients, err := h.Clinic.SearchPatients(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// UpdatePatient lets a patient edit their own profile.
func (h *UserHandler) UpdatePatient(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req UpdatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.Clinic.UpdatePatientProfile(c.Request.Context(), caller, c.Param("id"), models.PatientProfileUpdate{
		Name:       req.Name,
		Phone:      req.Phone,
		DOB:        req.DOB,
		Address:    req.Address,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", patient)
}
