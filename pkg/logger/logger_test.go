package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New(Config{Level: "debug"}).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New(Config{Level: "warn"}).GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, New(Config{Level: "error"}).GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New(Config{}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(Config{Level: "verbose"}).GetLevel())
}

func TestLevelsAreIndependent(t *testing.T) {
	quiet := New(Config{Level: "error"})
	chatty := New(Config{Level: "debug"})

	assert.Equal(t, zerolog.ErrorLevel, quiet.GetLevel())
	assert.Equal(t, zerolog.DebugLevel, chatty.GetLevel())
}
