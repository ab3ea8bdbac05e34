// Package flow tracks multi-step verification flows between requests.
//
// A flow starts when a code is issued, survives any number of failed
// attempts and resends, and ends when it is cleared after success. Each kind
// of flow is tracked independently, so starting a password reset does not
// disturb a pending login.
package flow

import (
	"errors"
	"time"

	"github.com/spado/songcontest/internal/model"
)

var (
	ErrFlowStateMissing = errors.New("no pending verification found")
	ErrFlowNotVerified  = errors.New("please verify your email first")
	ErrUnknownKind      = errors.New("unknown verification flow")
)

type Kind string

const (
	KindRegistration     Kind = model.VerificationTypeRegistration
	KindLogin            Kind = model.VerificationTypeLogin
	KindPasswordReset    Kind = model.VerificationTypePasswordReset
	KindUsernameRecovery Kind = model.VerificationTypeUsernameRecovery
	KindSongDeletion     Kind = model.VerificationTypeSongDeletion
)

// pathKinds maps the URL segment under /accounts to a flow.
var pathKinds = map[string]Kind{
	"signup":            KindRegistration,
	"login":             KindLogin,
	"password-reset":    KindPasswordReset,
	"username-recovery": KindUsernameRecovery,
}

// KindFromPath resolves the {flow} segment of /accounts/{flow}/... routes.
// Song deletion lives under /songs and is not resolvable here.
func KindFromPath(segment string) (Kind, error) {
	kind, ok := pathKinds[segment]
	if !ok {
		return "", ErrUnknownKind
	}
	return kind, nil
}

// VerificationType is the code type issued for this flow.
func (k Kind) VerificationType() string {
	return string(k)
}

// EntryPoint is where a user is sent when the flow state is missing.
func (k Kind) EntryPoint(songID string) string {
	switch k {
	case KindRegistration:
		return "/accounts/signup"
	case KindPasswordReset:
		return "/accounts/password-reset"
	case KindUsernameRecovery:
		return "/accounts/username-recovery"
	case KindSongDeletion:
		if songID != "" {
			return "/songs/" + songID + "/delete"
		}
		return "/dashboard"
	}
	return "/accounts/login"
}

// VerifyPath is where the code for this flow is submitted.
func (k Kind) VerifyPath(songID string) string {
	if k == KindSongDeletion {
		return "/songs/" + songID + "/delete/verify"
	}
	for segment, kind := range pathKinds {
		if kind == k {
			return "/accounts/" + segment + "/verify"
		}
	}
	return "/accounts/login/verify"
}

// Pending is the state of one started flow.
type Pending struct {
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	SongID    string    `json:"song,omitempty"`
	Verified  bool      `json:"verified,omitempty"`
	StartedAt time.Time `json:"started"`
}

// State holds at most one pending entry per kind.
type State struct {
	Flows map[Kind]*Pending `json:"flows,omitempty"`
}

func NewState() *State {
	return &State{Flows: make(map[Kind]*Pending)}
}

// Begin starts or restarts a flow, replacing any earlier entry of the kind.
func (s *State) Begin(kind Kind, userID, email, songID string, now time.Time) *Pending {
	if s.Flows == nil {
		s.Flows = make(map[Kind]*Pending)
	}

	p := &Pending{
		UserID:    userID,
		Email:     email,
		SongID:    songID,
		StartedAt: now,
	}
	s.Flows[kind] = p
	return p
}

// Require returns the pending entry or ErrFlowStateMissing.
func (s *State) Require(kind Kind) (*Pending, error) {
	p, ok := s.Flows[kind]
	if !ok || p == nil || p.UserID == "" || p.Email == "" {
		return nil, ErrFlowStateMissing
	}
	return p, nil
}

// RequireSong is Require for song deletion, additionally checking that the
// flow was started for songID.
func (s *State) RequireSong(songID string) (*Pending, error) {
	p, err := s.Require(KindSongDeletion)
	if err != nil {
		return nil, err
	}
	if p.SongID != songID {
		return nil, ErrFlowStateMissing
	}
	return p, nil
}

// MarkVerified records a successful code check for flows with a follow-up
// step.
func (s *State) MarkVerified(kind Kind) error {
	p, err := s.Require(kind)
	if err != nil {
		return err
	}
	p.Verified = true
	return nil
}

// RequireVerified returns the entry only after MarkVerified.
func (s *State) RequireVerified(kind Kind) (*Pending, error) {
	p, err := s.Require(kind)
	if err != nil {
		return nil, err
	}
	if !p.Verified {
		return nil, ErrFlowNotVerified
	}
	return p, nil
}

func (s *State) Clear(kind Kind) {
	delete(s.Flows, kind)
}

func (s *State) Empty() bool {
	return len(s.Flows) == 0
}
