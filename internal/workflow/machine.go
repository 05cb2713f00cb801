// Package workflow sequences the fix flow: credential check, fix authoring
// and pull-request creation.
package workflow

import (
	"errors"
	"fmt"

	"github.com/ppiankov/scanfix/internal/models"
)

// State is a step of the fix workflow.
type State int

const (
	Idle State = iota
	ViewingFile
	FixRequested
	PATRequired
	PATSaving
	Editing
	Saved
	CreatingPR
	Done
)

var stateNames = map[State]string{
	Idle:         "idle",
	ViewingFile:  "viewing_file",
	FixRequested: "fix_requested",
	PATRequired:  "pat_required",
	PATSaving:    "pat_saving",
	Editing:      "editing",
	Saved:        "saved",
	CreatingPR:   "creating_pr",
	Done:         "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// Event drives the Machine. The concrete types below form a closed set.
type Event interface {
	event()
}

// OpenFile shows a file.
type OpenFile struct{ Path string }

// CloseFile closes the file view without a fix in progress.
type CloseFile struct{}

// RequestFix selects a vulnerability to fix.
type RequestFix struct{ Vulnerability models.Vulnerability }

// CredentialChecked reports whether a usable stored credential exists.
type CredentialChecked struct{ Usable bool }

// SubmitCredential starts saving a credential.
type SubmitCredential struct{}

// CredentialSaved reports that the credential service accepted the credential.
type CredentialSaved struct{}

// CredentialFailed reports a rejected or failed credential save.
type CredentialFailed struct{ Err error }

// FixSaved reports a persisted fix.
type FixSaved struct{ Fix models.FixRecord }

// FixFailed reports a failed fix save.
type FixFailed struct{ Err error }

// OpenPullRequest opens PR creation for the saved fix.
type OpenPullRequest struct{}

// PullRequestCreated reports a created pull request.
type PullRequestCreated struct{ PullRequest models.PullRequest }

// PullRequestFailed reports a failed PR creation.
type PullRequestFailed struct{ Err error }

// Reset returns a finished workflow to Idle.
type Reset struct{}

// Cancel abandons the workflow from any state.
type Cancel struct{}

func (OpenFile) event()           {}
func (CloseFile) event()          {}
func (RequestFix) event()         {}
func (CredentialChecked) event()  {}
func (SubmitCredential) event()   {}
func (CredentialSaved) event()    {}
func (CredentialFailed) event()   {}
func (FixSaved) event()           {}
func (FixFailed) event()          {}
func (OpenPullRequest) event()    {}
func (PullRequestCreated) event() {}
func (PullRequestFailed) event()  {}
func (Reset) event()              {}
func (Cancel) event()             {}

// Snapshot is the observable state of the workflow.
type Snapshot struct {
	State         State
	FilePath      string
	Vulnerability *models.Vulnerability
	Fix           *models.FixRecord
	PullRequest   *models.PullRequest
	Err           error
}

// Machine is the pure transition function of the fix workflow. The zero
// value is an idle machine.
type Machine struct {
	snap    Snapshot
	history []State
}

// Snapshot returns the current state and selection.
func (m *Machine) Snapshot() Snapshot {
	return m.snap
}

// State returns the current state.
func (m *Machine) State() State {
	return m.snap.State
}

// History returns every state entered, starting with Idle.
func (m *Machine) History() []State {
	if len(m.history) == 0 {
		return []State{Idle}
	}
	return append([]State(nil), m.history...)
}

// Apply moves the machine for ev. An event that does not fit the current
// state returns ErrInvalidTransition and changes nothing.
func (m *Machine) Apply(ev Event) error {
	next, err := transition(m.snap, ev)
	if err != nil {
		return fmt.Errorf("%w: %T in %s", ErrInvalidTransition, ev, m.snap.State)
	}
	if len(m.history) == 0 {
		m.history = []State{Idle}
	}
	if next.State != m.snap.State {
		m.history = append(m.history, next.State)
	}
	m.snap = next
	return nil
}

func transition(s Snapshot, ev Event) (Snapshot, error) {
	switch e := ev.(type) {
	case Cancel:
		return Snapshot{State: Idle}, nil

	case OpenFile:
		if s.State != Idle && s.State != ViewingFile {
			return s, ErrInvalidTransition
		}
		return Snapshot{State: ViewingFile, FilePath: e.Path}, nil

	case CloseFile:
		if s.State != ViewingFile {
			return s, ErrInvalidTransition
		}
		return Snapshot{State: Idle}, nil

	case RequestFix:
		// The vulnerability list allows fixing without a file view open.
		if s.State != ViewingFile && s.State != Idle {
			return s, ErrInvalidTransition
		}
		v := e.Vulnerability
		return Snapshot{State: FixRequested, FilePath: v.FilePath, Vulnerability: &v}, nil

	case CredentialChecked:
		if s.State != FixRequested {
			return s, ErrInvalidTransition
		}
		if e.Usable {
			s.State = Editing
		} else {
			s.State = PATRequired
		}
		s.Err = nil
		return s, nil

	case SubmitCredential:
		if s.State != PATRequired {
			return s, ErrInvalidTransition
		}
		s.State = PATSaving
		s.Err = nil
		return s, nil

	case CredentialSaved:
		if s.State != PATSaving {
			return s, ErrInvalidTransition
		}
		s.State = Editing
		s.Err = nil
		return s, nil

	case CredentialFailed:
		if s.State != PATSaving {
			return s, ErrInvalidTransition
		}
		s.State = PATRequired
		s.Err = e.Err
		return s, nil

	case FixSaved:
		if s.State != Editing {
			return s, ErrInvalidTransition
		}
		fix := e.Fix
		s.State = Saved
		s.Fix = &fix
		s.Err = nil
		return s, nil

	case FixFailed:
		if s.State != Editing {
			return s, ErrInvalidTransition
		}
		s.Err = e.Err
		return s, nil

	case OpenPullRequest:
		if s.State != Saved {
			return s, ErrInvalidTransition
		}
		s.State = CreatingPR
		return s, nil

	case PullRequestCreated:
		if s.State != CreatingPR {
			return s, ErrInvalidTransition
		}
		pr := e.PullRequest
		s.State = Done
		s.PullRequest = &pr
		s.Err = nil
		return s, nil

	case PullRequestFailed:
		if s.State != CreatingPR {
			return s, ErrInvalidTransition
		}
		s.Err = e.Err
		return s, nil

	case Reset:
		if s.State != Done {
			return s, ErrInvalidTransition
		}
		return Snapshot{State: Idle}, nil
	}
	return s, ErrInvalidTransition
}
