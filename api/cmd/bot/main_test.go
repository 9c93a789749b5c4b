package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPollRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{name: "nil", err: nil, want: 0},
		{name: "retry after", err: errors.New("Too Many Requests: retry after 7"), want: 7 * time.Second},
		{name: "retry after clamped", err: errors.New("Too Many Requests: retry after 120"), want: 15 * time.Second},
		{name: "429 without hint", err: errors.New("too many requests"), want: 3 * time.Second},
		{name: "timeout", err: timeoutErr{}, want: 2 * time.Second},
		{name: "other", err: errors.New("bad gateway"), want: time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, pollRetryDelay(tc.err))
		})
	}
}

func TestShortHash(t *testing.T) {
	t.Parallel()

	a := shortHash("123:token")
	assert.Len(t, a, 16)
	assert.Equal(t, a, shortHash("123:token"))
	assert.NotEqual(t, a, shortHash("123:other"))
	// FNV-1a от пустой строки — offset basis
	assert.Equal(t, "cbf29ce484222325", shortHash(""))
}
