package dialog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Option is one selectable entry in a multi-select dialog, typically a
// registered user.
type Option struct {
	ID    int64
	Label string
}

// ErrNoSelection is returned when a multi-select is confirmed with
// nothing selected; at least one choice is required.
var ErrNoSelection = errors.New("dialog: nothing selected")

// multiSelect is a pending multi-choice dialog. Unlike selection it
// accumulates toggles until the initiator confirms.
type multiSelect struct {
	id          string
	kind        Kind
	chatID      int64
	initiatorID int64
	options     []Option
	selected    map[int64]bool
	expiresAt   time.Time
	resolved    bool
}

// PresentMulti registers a multi-select dialog over the given options.
// The selection lower bound is 1 and the upper bound is len(options).
// An empty option set reports no match; there is no auto-resolve
// shortcut because even a single eligible option needs confirmation.
func (r *Registry) PresentMulti(initiatorID, chatID int64, kind Kind, options []Option, ttl time.Duration) Offer {
	if len(options) == 0 {
		return Offer{Outcome: OutcomeNoMatch}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	ms := &multiSelect{
		id:          uuid.NewString(),
		kind:        kind,
		chatID:      chatID,
		initiatorID: initiatorID,
		options:     options,
		selected:    make(map[int64]bool),
		expiresAt:   now.Add(ttl),
	}

	key := ownerKey{initiatorID: initiatorID, chatID: chatID, kind: kind}
	if prior, ok := r.owners[key]; ok {
		delete(r.byID, prior)
		delete(r.multis, prior)
	}
	r.owners[key] = ms.id
	r.multis[ms.id] = ms

	return Offer{Outcome: OutcomeAmbiguous, DialogID: ms.id}
}

// Toggle flips one option's membership in the pending selection and
// returns whether it is now selected plus the current selection count.
// Same guard order as Pick.
func (r *Registry) Toggle(dialogID string, pickerID, optionID int64) (selectedNow bool, count int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms, ok := r.multis[dialogID]
	if !ok {
		return false, 0, ErrNotFound
	}
	if pickerID != ms.initiatorID {
		return false, 0, ErrUnauthorized
	}
	if r.nowFunc().After(ms.expiresAt) {
		r.dropMulti(ms)
		return false, 0, ErrExpired
	}
	if ms.resolved {
		return false, 0, ErrAlreadyResolved
	}

	if !ms.hasOption(optionID) {
		return false, 0, ErrInvalidChoice
	}

	if ms.selected[optionID] {
		delete(ms.selected, optionID)
	} else {
		ms.selected[optionID] = true
	}
	return ms.selected[optionID], len(ms.selected), nil
}

// Confirm commits a multi-select, returning the chosen option IDs in
// option order. At least one selection is required.
func (r *Registry) Confirm(dialogID string, pickerID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms, ok := r.multis[dialogID]
	if !ok {
		return nil, ErrNotFound
	}
	if pickerID != ms.initiatorID {
		return nil, ErrUnauthorized
	}
	if r.nowFunc().After(ms.expiresAt) {
		r.dropMulti(ms)
		return nil, ErrExpired
	}
	if ms.resolved {
		return nil, ErrAlreadyResolved
	}
	if len(ms.selected) == 0 {
		return nil, ErrNoSelection
	}

	chosen := make([]int64, 0, len(ms.selected))
	for _, opt := range ms.options {
		if ms.selected[opt.ID] {
			chosen = append(chosen, opt.ID)
		}
	}

	ms.resolved = true
	r.dropMulti(ms)
	return chosen, nil
}

// Options returns the option list and current selection state of a
// pending multi-select, for re-rendering the prompt after a toggle.
func (r *Registry) Options(dialogID string) ([]Option, map[int64]bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms, ok := r.multis[dialogID]
	if !ok {
		return nil, nil, false
	}

	selected := make(map[int64]bool, len(ms.selected))
	for id := range ms.selected {
		selected[id] = true
	}
	return ms.options, selected, true
}

func (ms *multiSelect) hasOption(id int64) bool {
	for _, opt := range ms.options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// dropMulti removes a multi-select and its ownership entry. Caller
// holds mu.
func (r *Registry) dropMulti(ms *multiSelect) {
	delete(r.multis, ms.id)
	key := ownerKey{initiatorID: ms.initiatorID, chatID: ms.chatID, kind: ms.kind}
	if r.owners[key] == ms.id {
		delete(r.owners, key)
	}
}
