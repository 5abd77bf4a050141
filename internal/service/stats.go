package service

import (
	"context"
	"sort"

	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
)

const topWinnerCount = 3

// GameStats summarizes one game's play history in a chat.
type GameStats struct {
	GameID     int64
	TotalPlays int
	TopWinners []WinnerCount
}

// WinnerCount is a user's win tally for one game.
type WinnerCount struct {
	UserID int64
	Wins   int
}

// UserStats summarizes one user's play history in a chat.
type UserStats struct {
	SessionsPlayed int
	Wins           int
	MostPlayed     string
	MostPlayedN    int
}

// StatsService computes play statistics. All reductions fold over the
// chat's session summaries; nothing is precomputed in the database.
type StatsService struct {
	sessionRepo *repository.SessionRepository
	userRepo    *repository.UserRepository
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(sessionRepo *repository.SessionRepository, userRepo *repository.UserRepository) *StatsService {
	return &StatsService{sessionRepo: sessionRepo, userRepo: userRepo}
}

// ForGame reports how many times a game was played in the chat and its
// top three winners by win count.
func (s *StatsService) ForGame(ctx context.Context, gameID, chatID int64) (*GameStats, error) {
	summaries, err := s.sessionRepo.Summaries(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return computeGameStats(summaries, gameID), nil
}

// ForUser reports a user's sessions played, wins, and most-played game
// in the chat.
func (s *StatsService) ForUser(ctx context.Context, userID, chatID int64) (*UserStats, error) {
	summaries, err := s.sessionRepo.Summaries(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return computeUserStats(summaries, userID), nil
}

// WinnerNames resolves winner counts to display names, preserving
// order.
func (s *StatsService) WinnerNames(ctx context.Context, winners []WinnerCount) ([]string, error) {
	ids := make([]int64, len(winners))
	for i, w := range winners {
		ids[i] = w.UserID
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	names := make([]string, 0, len(winners))
	for _, w := range winners {
		if u, ok := byID[w.UserID]; ok {
			names = append(names, u.DisplayName())
		}
	}
	return names, nil
}

func computeGameStats(summaries []*model.SessionSummary, gameID int64) *GameStats {
	stats := &GameStats{GameID: gameID}

	wins := make(map[int64]int)
	var order []int64
	for _, s := range summaries {
		if s.GameID != gameID {
			continue
		}
		stats.TotalPlays++
		for _, w := range s.Winners {
			if wins[w] == 0 {
				order = append(order, w)
			}
			wins[w]++
		}
	}

	// Sort by wins descending; ties keep first-encountered order.
	counts := make([]WinnerCount, 0, len(order))
	for _, id := range order {
		counts = append(counts, WinnerCount{UserID: id, Wins: wins[id]})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Wins > counts[j].Wins
	})
	if len(counts) > topWinnerCount {
		counts = counts[:topWinnerCount]
	}
	stats.TopWinners = counts
	return stats
}

func computeUserStats(summaries []*model.SessionSummary, userID int64) *UserStats {
	stats := &UserStats{}

	plays := make(map[int64]int)
	names := make(map[int64]string)
	var order []int64
	for _, s := range summaries {
		if !containsID(s.Participants, userID) {
			continue
		}
		stats.SessionsPlayed++
		if containsID(s.Winners, userID) {
			stats.Wins++
		}
		if plays[s.GameID] == 0 {
			order = append(order, s.GameID)
			names[s.GameID] = s.GameName
		}
		plays[s.GameID]++
	}

	// Most played, ties broken by first-encountered game.
	best := 0
	for _, id := range order {
		if plays[id] > best {
			best = plays[id]
			stats.MostPlayed = names[id]
			stats.MostPlayedN = plays[id]
		}
	}
	return stats
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
