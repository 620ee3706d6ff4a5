package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DoyleJ11/connect4-backend/internal/bot"
	"github.com/DoyleJ11/connect4-backend/internal/config"
)

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, originPatterns([]string{"*"}))
	assert.Equal(t, []string{"app.example.com", "localhost:5173"},
		originPatterns([]string{"https://app.example.com", "http://localhost:5173"}))
}

func TestStrategyFor(t *testing.T) {
	assert.IsType(t, bot.Heuristic{}, strategyFor(config.BotHeuristic))
	assert.IsType(t, &bot.Random{}, strategyFor(config.BotRandom))
}
