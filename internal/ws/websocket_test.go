package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{URL: "wss://example.com/ws"}, func([]byte) {})

	assert.NotNil(t, client)
	assert.False(t, client.IsConnected())
	assert.Equal(t, StateDisconnected, client.State())
	assert.Equal(t, 1*time.Second, client.config.ReconnectBaseWait)
	assert.Equal(t, 30*time.Second, client.config.ReconnectMaxWait)
	assert.Equal(t, 30*time.Second, client.config.PingInterval)
	assert.Equal(t, 60*time.Second, client.config.PongWait)
}

func TestSendPingWithoutConnection(t *testing.T) {
	client := NewClient(Config{URL: "wss://example.com/ws"}, func([]byte) {})

	assert.Error(t, client.SendPing())
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateClosed, "closed"},
		{ConnState(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestConnState_Transition(t *testing.T) {
	var s connState

	assert.True(t, s.transition(StateDisconnected, StateConnecting))
	assert.False(t, s.transition(StateDisconnected, StateConnected))
	assert.Equal(t, StateConnecting, s.load())
}

func TestConnState_ShutdownRunsOnce(t *testing.T) {
	var s connState
	s.store(StateConnected)

	assert.True(t, s.shutdown())
	assert.False(t, s.shutdown())
	assert.Equal(t, StateClosed, s.load())
}
