package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
)

// Common errors for session operations.
var (
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
	ErrWrongChat      = errors.New("session belongs to another chat")
	ErrNotParticipant = errors.New("winner must be a session participant")
)

// SessionService handles play-session workflows: logging sessions,
// linking participants and winners, and listing history.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	userRepo    *repository.UserRepository
	gameRepo    *repository.GameRepository
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		gameRepo:    gameRepo,
	}
}

// ParseDate validates a session date. Only the strict YYYY-MM-DD form
// is accepted; "2025-13-40" and "2025-1-2" are both rejected. An empty
// string means no date and is valid.
func ParseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}

// Create logs a session for a game. The date string is validated
// before anything is persisted; an invalid date means no session row.
func (s *SessionService) Create(ctx context.Context, gameID, chatID int64, name, date string) (*model.Session, error) {
	playedOn, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.gameRepo.GetByID(ctx, gameID); err != nil {
		return nil, err
	}
	return s.sessionRepo.Create(ctx, gameID, chatID, name, playedOn)
}

// Get retrieves a session, verifying it belongs to the chat.
func (s *SessionService) Get(ctx context.Context, sessionID, chatID int64) (*model.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ChatID != chatID {
		return nil, ErrWrongChat
	}
	return session, nil
}

// Delete removes a session and its links after chat verification.
func (s *SessionService) Delete(ctx context.Context, sessionID, chatID int64) error {
	if _, err := s.Get(ctx, sessionID, chatID); err != nil {
		return err
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// EligibleParticipants lists the chat's registered users who are not
// yet linked to the session.
func (s *SessionService) EligibleParticipants(ctx context.Context, sessionID, chatID int64) ([]*model.User, error) {
	if _, err := s.Get(ctx, sessionID, chatID); err != nil {
		return nil, err
	}
	all, err := s.userRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	linked, err := s.sessionRepo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filterUsers(all, linked), nil
}

// EligibleWinners lists the session's participants who are not yet
// marked as winners. Only participants can win.
func (s *SessionService) EligibleWinners(ctx context.Context, sessionID, chatID int64) ([]*model.User, error) {
	if _, err := s.Get(ctx, sessionID, chatID); err != nil {
		return nil, err
	}
	participantIDs, err := s.sessionRepo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.userRepo.GetByIDs(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	winners, err := s.sessionRepo.ListWinners(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filterUsers(participants, winners), nil
}

// AddParticipants links users to a session. Already-linked users are
// skipped and counted, never errored.
func (s *SessionService) AddParticipants(ctx context.Context, sessionID int64, userIDs []int64) (added, skipped int, err error) {
	for _, id := range userIDs {
		existed, err := s.sessionRepo.LinkParticipant(ctx, sessionID, id)
		if err != nil {
			return added, skipped, err
		}
		if existed {
			skipped++
		} else {
			added++
		}
	}
	return added, skipped, nil
}

// AddWinners marks session participants as winners. Non-participants
// are rejected, duplicates skipped.
func (s *SessionService) AddWinners(ctx context.Context, sessionID int64, userIDs []int64) (added, skipped int, err error) {
	participantIDs, err := s.sessionRepo.ListParticipants(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	participants := make(map[int64]bool, len(participantIDs))
	for _, id := range participantIDs {
		participants[id] = true
	}

	for _, id := range userIDs {
		if !participants[id] {
			return added, skipped, fmt.Errorf("%w: user %d", ErrNotParticipant, id)
		}
		existed, err := s.sessionRepo.LinkWinner(ctx, sessionID, id)
		if err != nil {
			return added, skipped, err
		}
		if existed {
			skipped++
		} else {
			added++
		}
	}
	return added, skipped, nil
}

// SessionDetail is a session with its winners resolved for display.
type SessionDetail struct {
	Session *model.Session
	Winners []*model.User
}

// History retrieves a game's sessions in a chat with winners, newest
// first.
func (s *SessionService) History(ctx context.Context, gameID, chatID int64) ([]*SessionDetail, error) {
	sessions, err := s.sessionRepo.ListForGame(ctx, gameID, chatID)
	if err != nil {
		return nil, err
	}

	details := make([]*SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		winnerIDs, err := s.sessionRepo.ListWinners(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		winners, err := s.userRepo.GetByIDs(ctx, winnerIDs)
		if err != nil {
			return nil, err
		}
		details = append(details, &SessionDetail{Session: session, Winners: winners})
	}
	return details, nil
}

// filterUsers drops users whose IDs appear in exclude, preserving
// order.
func filterUsers(users []*model.User, exclude []int64) []*model.User {
	drop := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		drop[id] = true
	}
	var out []*model.User
	for _, u := range users {
		if !drop[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
