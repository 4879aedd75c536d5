package entities

import "time"

// ServerRole distinguishes the two kinds of staff who serve queue entries
type ServerRole string

const (
	RoleDoctor        ServerRole = "doctor"
	RoleLabTechnician ServerRole = "lab_technician"
)

// Valid reports whether the role is one the queue knows about
func (r ServerRole) Valid() bool {
	return r == RoleDoctor || r == RoleLabTechnician
}

// Server is a staff member who calls and serves patients
type Server struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Role       ServerRole `json:"role" db:"role"`
	Department string     `json:"department,omitempty" db:"department"`
	Phone      string     `json:"phone,omitempty" db:"phone"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Doctor is a Server known to hold the doctor role. Only obtainable via AsDoctor.
type Doctor struct {
	server *Server
}

// LabTechnician is a Server known to hold the lab technician role. Only
// obtainable via AsLabTechnician.
type LabTechnician struct {
	server *Server
}

// AsDoctor narrows the server to the doctor capability
func (s *Server) AsDoctor() (Doctor, bool) {
	if s == nil || s.Role != RoleDoctor {
		return Doctor{}, false
	}
	return Doctor{server: s}, true
}

// AsLabTechnician narrows the server to the lab technician capability
func (s *Server) AsLabTechnician() (LabTechnician, bool) {
	if s == nil || s.Role != RoleLabTechnician {
		return LabTechnician{}, false
	}
	return LabTechnician{server: s}, true
}

func (d Doctor) ID() string      { return d.server.ID }
func (d Doctor) Server() *Server { return d.server }

func (t LabTechnician) ID() string      { return t.server.ID }
func (t LabTechnician) Server() *Server { return t.server }
