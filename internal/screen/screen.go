// Package screen models client navigation as a finite set of screens and a
// pure transition function, so every reachable view and the action that
// leads to it can be listed and tested.
package screen

import "healthplus-server/internal/models"

// Screen is one client view.
type Screen string

const (
	Landing          Screen = "landing"
	PatientLogin     Screen = "patientLogin"
	DoctorLogin      Screen = "doctorLogin"
	Register         Screen = "register"
	PatientDashboard Screen = "patientDashboard"
	DoctorDashboard  Screen = "doctorDashboard"
	PatientProfile   Screen = "patientProfile" // a doctor viewing one patient
	VisitDetail      Screen = "visitDetail"    // a patient's care plan for one visit
)

// All lists every screen.
var All = []Screen{
	Landing, PatientLogin, DoctorLogin, Register,
	PatientDashboard, DoctorDashboard, PatientProfile, VisitDetail,
}

// Action is a user or system event that may change the screen.
type Action string

const (
	ChoosePatient  Action = "choosePatient"
	ChooseDoctor   Action = "chooseDoctor"
	GoToRegister   Action = "goToRegister"
	GoToLogin      Action = "goToLogin"
	Back           Action = "back"
	LoginSucceeded Action = "loginSucceeded"
	Registered     Action = "registered"
	OpenVisit      Action = "openVisit"
	OpenPatient    Action = "openPatient"
	Logout         Action = "logout"
	SessionExpired Action = "sessionExpired"
)

type edge struct {
	from   Screen
	action Action
}

// transitions holds moves that do not depend on the role.
var transitions = map[edge]Screen{
	{Landing, ChoosePatient}: PatientLogin,
	{Landing, ChooseDoctor}:  DoctorLogin,

	{PatientLogin, Back}:         Landing,
	{PatientLogin, GoToRegister}: Register,
	{DoctorLogin, Back}:          Landing,
	{Register, Back}:             Landing,
	{Register, GoToLogin}:        PatientLogin,

	{VisitDetail, Back}:    PatientDashboard,
	{PatientProfile, Back}: DoctorDashboard,
}

// home is the dashboard for each role.
var home = map[models.Role]Screen{
	models.RolePatient: PatientDashboard,
	models.RoleDoctor:  DoctorDashboard,
}

// owner is the role allowed on each signed-in screen.
var owner = map[Screen]models.Role{
	PatientDashboard: models.RolePatient,
	VisitDetail:      models.RolePatient,
	DoctorDashboard:  models.RoleDoctor,
	PatientProfile:   models.RoleDoctor,
}

// Transition returns the screen after action is taken on current by a user
// with role (empty when signed out). Unknown or disallowed actions keep the
// current screen. Logout and session expiry always return to Landing.
func Transition(current Screen, action Action, role models.Role) Screen {
	switch action {
	case Logout, SessionExpired:
		return Landing
	case LoginSucceeded:
		if current == PatientLogin && role == models.RolePatient ||
			current == DoctorLogin && role == models.RoleDoctor {
			return home[role]
		}
		return current
	case Registered:
		if current == Register && role == models.RolePatient {
			return PatientDashboard
		}
		return current
	case OpenVisit:
		if current == PatientDashboard && role == models.RolePatient {
			return VisitDetail
		}
		return current
	case OpenPatient:
		if current == DoctorDashboard && role == models.RoleDoctor {
			return PatientProfile
		}
		return current
	}

	next, ok := transitions[edge{current, action}]
	if !ok {
		return current
	}
	if want, signedIn := owner[next]; signedIn && want != role {
		return current
	}
	return next
}

// RequiresSession reports whether s is only shown to a signed-in user.
func RequiresSession(s Screen) bool {
	_, ok := owner[s]
	return ok
}
