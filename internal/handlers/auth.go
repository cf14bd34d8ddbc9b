package handlers

import (
	"github.com/gin-gonic/gin"

	"healthplus-server/internal/clinic"
	"healthplus-server/internal/config"
	"healthplus-server/internal/middleware"
	"healthplus-server/internal/models"
	"healthplus-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Clinic *clinic.Service
	Cfg    *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *clinic.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Clinic: svc, Cfg: cfg}
}

// RegisterRequest represents the request body for patient registration.
type RegisterRequest struct {
	PatientID string `json:"patientId" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Phone     string `json:"phone"`
	DOB       string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	Address   string `json:"address"`
}

// PatientLoginRequest represents the request body for patient login.
type PatientLoginRequest struct {
	PatientID string `json:"patientId" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
}

// DoctorLoginRequest represents the request body for doctor login.
type DoctorLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by registration and both logins.
type AuthResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
	User  any         `json:"user"`
}

func (h *AuthHandler) issue(c *gin.Context, caller models.Caller, user any) (*AuthResponse, bool) {
	token, err := utils.GenerateSessionToken(caller, h.Cfg.JWTSecret, h.Cfg.SessionTTL)
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}
	return &AuthResponse{Token: token, Role: caller.Role, User: user}, true
}

// Register handles patient registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}

	patient, err := h.Clinic.RegisterPatient(c.Request.Context(), clinic.Registration{
		PatientID: req.PatientID,
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		DOB:       req.DOB,
		Address:   req.Address,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp, ok := h.issue(c, models.Caller{ID: patient.ID, Role: models.RolePatient}, patient)
	if !ok {
		return
	}
	utils.Created(c, "Patient registered successfully", resp)
}

// PatientLogin handles patient login by patient id, email and password.
func (h *AuthHandler) PatientLogin(c *gin.Context) {
	var req PatientLoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.Clinic.AuthenticatePatient(c.Request.Context(), req.PatientID, req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp, ok := h.issue(c, models.Caller{ID: patient.ID, Role: models.RolePatient}, patient)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", resp)
}

// DoctorLogin handles doctor login by email and password.
func (h *AuthHandler) DoctorLogin(c *gin.Context) {
	var req DoctorLoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctor, err := h.Clinic.AuthenticateDoctor(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp, ok := h.issue(c, models.Caller{ID: doctor.ID, Role: models.RoleDoctor}, doctor)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", resp)
}

// GetProfile returns the authenticated user's own record.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	profile, err := h.Clinic.Profile(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", profile)
}

// callerFrom reads the authenticated caller, answering 401 when there is none.
func callerFrom(c *gin.Context) (models.Caller, bool) {
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return models.Caller{}, false
	}
	return caller, true
}
