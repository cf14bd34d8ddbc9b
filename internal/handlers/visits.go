package handlers

import (
	"github.com/gin-gonic/gin"

	"healthplus-server/internal/clinic"
	"healthplus-server/internal/models"
	"healthplus-server/internal/utils"
)

// VisitHandler handles visit and prescription requests.
type VisitHandler struct {
	Clinic *clinic.Service
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(svc *clinic.Service) *VisitHandler {
	return &VisitHandler{Clinic: svc}
}

// CreateVisitRequest represents the request body for recording a visit.
type CreateVisitRequest struct {
	PatientID    string `json:"patientId" binding:"required"`
	VisitDate    string `json:"visitDate" binding:"omitempty,datetime=2006-01-02"`
	FollowUpDate string `json:"followUpDate" binding:"omitempty,datetime=2006-01-02"`
	Notes        string `json:"notes"`
}

// PrescriptionRequest represents the request body for adding a medicine.
type PrescriptionRequest struct {
	MedicineName string `json:"medicineName" binding:"required"`
	Dosage       string `json:"dosage"`
	Duration     string `json:"duration"`
	StartDate    string `json:"startDate" binding:"omitempty,datetime=2006-01-02"`
}

// UpdatePrescriptionRequest represents the editable medicine fields.
type UpdatePrescriptionRequest struct {
	MedicineName *string `json:"medicineName"`
	Dosage       *string `json:"dosage"`
	Duration     *string `json:"duration"`
	StartDate    *string `json:"startDate" binding:"omitempty,datetime=2006-01-02"`
}

// ToggleDoseRequest names the day to toggle. Empty means today.
type ToggleDoseRequest struct {
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// GetVisitsForPatient returns a patient's visits, newest first.
func (h *VisitHandler) GetVisitsForPatient(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	visits, err := h.Clinic.ListVisits(c.Request.Context(), caller, c.Param("patientId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Visits fetched successfully", visits)
}

// CreateVisit records a visit by the calling doctor.
func (h *VisitHandler) CreateVisit(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req CreateVisitRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	visit, err := h.Clinic.CreateVisit(c.Request.Context(), caller, clinic.VisitInput{
		PatientID:    req.PatientID,
		VisitDate:    req.VisitDate,
		FollowUpDate: req.FollowUpDate,
		Notes:        req.Notes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Visit recorded successfully", visit)
}

// GetPrescriptions returns a visit's prescriptions with adherence rates.
func (h *VisitHandler) GetPrescriptions(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	prescriptions, err := h.Clinic.ListPrescriptions(c.Request.Context(), caller, c.Param("visitId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", prescriptions)
}

// AddPrescription adds a medicine to a visit.
func (h *VisitHandler) AddPrescription(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req PrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	prescription, err := h.Clinic.AddPrescription(c.Request.Context(), caller, c.Param("visitId"), clinic.PrescriptionInput{
		MedicineName: req.MedicineName,
		Dosage:       req.Dosage,
		Duration:     req.Duration,
		StartDate:    req.StartDate,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Prescription added successfully", prescription)
}

// UpdatePrescription edits a prescription's medicine fields.
func (h *VisitHandler) UpdatePrescription(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req UpdatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	prescription, err := h.Clinic.UpdatePrescription(c.Request.Context(), caller, c.Param("id"), models.PrescriptionUpdate{
		MedicineName: req.MedicineName,
		Dosage:       req.Dosage,
		Duration:     req.Duration,
		StartDate:    req.StartDate,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Prescription updated successfully", prescription)
}

// ToggleDose marks or unmarks a day's dose.
func (h *VisitHandler) ToggleDose(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req ToggleDoseRequest
	if c.Request.ContentLength != 0 && !utils.BindAndValidate(c, &req) {
		return
	}

	prescription, err := h.Clinic.ToggleDose(c.Request.Context(), caller, c.Param("id"), req.Date)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Dose updated successfully", prescription)
}
