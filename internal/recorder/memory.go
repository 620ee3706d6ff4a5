package recorder

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]Result
	wins  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]Result),
		wins:  make(map[string]int),
	}
}

func (m *MemoryStore) Record(_ context.Context, r Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[r.GameID]; ok {
		return false, nil
	}
	m.games[r.GameID] = r
	if r.Winner != "" {
		m.wins[r.Winner]++
	}
	return true, nil
}

func (m *MemoryStore) Standings(_ context.Context, limit int) ([]Standing, error) {
	m.mu.RLock()
	out := make([]Standing, 0, len(m.wins))
	for player, wins := range m.wins {
		out = append(out, Standing{Player: player, Wins: wins})
	}
	m.mu.RUnlock()

	sortStandings(out)
	return clip(out, limit), nil
}

func (m *MemoryStore) Close() error { return nil }
