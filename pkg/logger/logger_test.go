package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewRespectsConfiguredLevel(t *testing.T) {
	l := New(Config{Env: "production", Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, l.zl.GetLevel())

	l = New(Config{Env: "development", Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, l.zl.GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel, // default
		"otro":  zerolog.InfoLevel, // valores desconocidos caen en info
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "nivel %q", in)
	}
}
