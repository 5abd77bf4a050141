// Package dialog implements the disambiguation dialog state machine:
// short-lived selection prompts that resolve one candidate set to one
// choice, owned by the user who started them.
package dialog

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RaneWallin/GameNightBot/internal/resolver"
)

// Kind partitions dialogs so a new query only replaces a prior dialog
// of the same kind from the same initiator.
type Kind string

const (
	KindAddGame      Kind = "addgame"
	KindRemoveGame   Kind = "removegame"
	KindFindGame     Kind = "findgame"
	KindGameInfo     Kind = "gameinfo"
	KindNewSession   Kind = "newsession"
	KindListSessions Kind = "sessions"
	KindGameStats    Kind = "gamestats"
	KindParticipants Kind = "participants"
	KindWinners      Kind = "winners"
)

// Pick attempt failures. ErrUnauthorized and ErrExpired are user-facing
// outcomes; ErrInvalidChoice indicates a contract violation (the index
// was never offered) and aborts only that attempt.
var (
	ErrNotFound        = errors.New("dialog: no such dialog")
	ErrUnauthorized    = errors.New("dialog: only the initiating user may pick")
	ErrExpired         = errors.New("dialog: expired")
	ErrAlreadyResolved = errors.New("dialog: already resolved")
	ErrInvalidChoice   = errors.New("dialog: choice outside the offered set")
)

// Outcome is the terminal classification of a resolution request.
type Outcome int

const (
	// OutcomeNoMatch means the candidate set was empty.
	OutcomeNoMatch Outcome = iota
	// OutcomeAuto means a single candidate resolved without a prompt.
	OutcomeAuto
	// OutcomeAmbiguous means a prompt was created and awaits a pick.
	OutcomeAmbiguous
)

// Offer is the result handed to the presentation layer: either an
// auto-resolved candidate or a pending dialog to render.
type Offer struct {
	Outcome    Outcome
	Candidate  resolver.Candidate // set when Outcome == OutcomeAuto
	DialogID   string             // set when Outcome == OutcomeAmbiguous
	Candidates []resolver.Candidate
}

// selection is one pending single-pick dialog.
type selection struct {
	id          string
	kind        Kind
	chatID      int64
	initiatorID int64
	candidates  []resolver.Candidate
	createdAt   time.Time
	expiresAt   time.Time
	resolved    bool
}

type ownerKey struct {
	initiatorID int64
	chatID      int64
	kind        Kind
}

// Registry owns all pending dialogs. Every transition is a single
// check-and-set under one mutex, so the initiator-vs-expiry and
// initiator-vs-intruder races both land on a clean rejection.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*selection
	multis  map[string]*multiSelect
	owners  map[ownerKey]string
	nowFunc func() time.Time
}

// NewRegistry creates an empty dialog registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*selection),
		multis:  make(map[string]*multiSelect),
		owners:  make(map[ownerKey]string),
		nowFunc: time.Now,
	}
}

// SetClock overrides the registry clock. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFunc = now
}

// Present classifies a candidate set: empty reports no match, a single
// candidate auto-resolves, anything larger registers a pending dialog
// owned by the initiator. A new dialog implicitly replaces any prior
// dialog of the same kind by the same initiator in the same chat.
func (r *Registry) Present(initiatorID, chatID int64, kind Kind, candidates []resolver.Candidate, ttl time.Duration) Offer {
	switch len(candidates) {
	case 0:
		return Offer{Outcome: OutcomeNoMatch}
	case 1:
		return Offer{Outcome: OutcomeAuto, Candidate: candidates[0]}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	sel := &selection{
		id:          uuid.NewString(),
		kind:        kind,
		chatID:      chatID,
		initiatorID: initiatorID,
		candidates:  candidates,
		createdAt:   now,
		expiresAt:   now.Add(ttl),
	}

	key := ownerKey{initiatorID: initiatorID, chatID: chatID, kind: kind}
	if prior, ok := r.owners[key]; ok {
		delete(r.byID, prior)
		delete(r.multis, prior)
		log.Debug().
			Str("dialog_id", prior).
			Int64("user_id", initiatorID).
			Msg("Replaced prior pending dialog")
	}
	r.owners[key] = sel.id
	r.byID[sel.id] = sel

	return Offer{Outcome: OutcomeAmbiguous, DialogID: sel.id, Candidates: candidates}
}

// Pick attempts to resolve a pending dialog to the candidate at index.
// Guard order: identity, then liveness, then membership. A successful
// pick retires the dialog; later attempts are rejected as resolved.
func (r *Registry) Pick(dialogID string, pickerID int64, index int) (resolver.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sel, ok := r.byID[dialogID]
	if !ok {
		// Swept or replaced: indistinguishable from expired to the user.
		return resolver.Candidate{}, ErrNotFound
	}

	if pickerID != sel.initiatorID {
		// Non-destructive: the dialog stays awaitable by its owner.
		return resolver.Candidate{}, ErrUnauthorized
	}

	if r.nowFunc().After(sel.expiresAt) {
		r.drop(sel)
		return resolver.Candidate{}, ErrExpired
	}

	if sel.resolved {
		return resolver.Candidate{}, ErrAlreadyResolved
	}

	if index < 0 || index >= len(sel.candidates) {
		return resolver.Candidate{}, ErrInvalidChoice
	}

	sel.resolved = true
	r.drop(sel)
	return sel.candidates[index], nil
}

// drop removes a selection and its ownership entry. Caller holds mu.
func (r *Registry) drop(sel *selection) {
	delete(r.byID, sel.id)
	key := ownerKey{initiatorID: sel.initiatorID, chatID: sel.chatID, kind: sel.kind}
	if r.owners[key] == sel.id {
		delete(r.owners, key)
	}
}

// Sweep removes expired dialogs. Returns the number removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	removed := 0
	for _, sel := range r.byID {
		if now.After(sel.expiresAt) {
			r.drop(sel)
			removed++
		}
	}
	for _, ms := range r.multis {
		if now.After(ms.expiresAt) {
			r.dropMulti(ms)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired dialogs on an interval until done is
// closed.
func (r *Registry) StartJanitor(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("Swept expired dialogs")
				}
			}
		}
	}()
}

// Kind reports what a pending dialog was opened for, so a generic
// callback route can dispatch the pick to the right workflow.
func (r *Registry) Kind(dialogID string) (Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sel, ok := r.byID[dialogID]; ok {
		return sel.kind, true
	}
	if ms, ok := r.multis[dialogID]; ok {
		return ms.kind, true
	}
	return "", false
}

// Pending reports whether a dialog is still awaiting a pick.
func (r *Registry) Pending(dialogID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sel, ok := r.byID[dialogID]
	if !ok {
		return false
	}
	return !sel.resolved && !r.nowFunc().After(sel.expiresAt)
}
