package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		err  error
	}{
		{"forward", Drive{Direction: Forward}, nil},
		{"backward", Drive{Direction: Backward}, nil},
		{" left\n", Drive{Direction: Left}, nil},
		{"right", Drive{Direction: Right}, nil},
		{"stop", Halt{}, nil},
		{"stop_stream", StopStream{}, nil},
		{"start_stream|abc123", StartStream{StreamID: "abc123"}, nil},
		{"start_stream|", nil, ErrMissingStreamID},
		{"start_stream", nil, ErrMissingStreamID},
		{"cam_up", Camera{Action: "up"}, nil},
		{"cam_", nil, ErrUnknownCommand},
		{"jump", nil, ErrUnknownCommand},
		{"", nil, ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, cmd := range []Command{
		Drive{Direction: Forward},
		Halt{},
		StartStream{StreamID: "room-7"},
		StopStream{},
		Camera{Action: "left"},
	} {
		got, err := ParseCommand(cmd.Encode())
		require.NoError(t, err, cmd.Encode())
		assert.Equal(t, cmd, got)
	}
}

func TestIsControl(t *testing.T) {
	assert.True(t, IsControl(Drive{Direction: Left}))
	assert.True(t, IsControl(Halt{}))
	assert.True(t, IsControl(Camera{Action: "down"}))
	assert.False(t, IsControl(StartStream{StreamID: "x"}))
	assert.False(t, IsControl(StopStream{}))
}
