package identity

import "time"

// Module is one of the three learning tracks whose completion is tracked.
type Module string

const (
	Transit Module = "transit"
	Shield  Module = "shield"
	Udyam   Module = "udyam"
)

// Modules lists every module in display order.
var Modules = []Module{Transit, Shield, Udyam}

// Valid reports whether m is a known module.
func (m Module) Valid() bool {
	switch m {
	case Transit, Shield, Udyam:
		return true
	}
	return false
}

// Progress holds a completion percentage in [0,100] per module.
type Progress struct {
	Transit int `json:"transit"`
	Shield  int `json:"shield"`
	Udyam   int `json:"udyam"`
}

// Get returns the percentage for m, or 0 for an unknown module.
func (p Progress) Get(m Module) int {
	switch m {
	case Transit:
		return p.Transit
	case Shield:
		return p.Shield
	case Udyam:
		return p.Udyam
	}
	return 0
}

// Set stores v for m, clamped to [0,100]. Unknown modules are ignored.
func (p *Progress) Set(m Module, v int) {
	v = clamp(v)
	switch m {
	case Transit:
		p.Transit = v
	case Shield:
		p.Shield = v
	case Udyam:
		p.Udyam = v
	}
}

func clamp(v int) int {
	return min(100, max(0, v))
}

// Account is a registered user. Field names on the wire are kept compatible
// with the browser build's localStorage records.
type Account struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordDigest string    `json:"password"`
	CreatedAt      time.Time `json:"createdAt"`
	Progress       Progress  `json:"progress"`
}

// Session identifies who is using the current process. Name and Email are
// copies taken when the session was created and are not refreshed if the
// account changes later.
type Session struct {
	ID         string
	UserID     int64
	Name       string
	Email      string
	CreatedAt  time.Time
	Persistent bool
}
