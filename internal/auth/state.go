package auth

import "github.com/siahsang/beatpost/models"

type State int

const (
	// Unresolved means the stored credential has not been checked yet.
	Unresolved State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent read of the manager. Identity is a copy and is
// non-nil exactly when State is Authenticated.
type Snapshot struct {
	State    State        `json:"state"`
	Identity *models.User `json:"identity,omitempty"`
}

func (s Snapshot) Loading() bool {
	return s.State == Unresolved
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == Authenticated
}

// Username returns the identity's username, or "" when not authenticated.
func (s Snapshot) Username() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Username
}
