// Package protocol holds the messages exchanged with vehicles, controllers and
// observers. Device commands are plain text; everything sent to browsers is JSON.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCommand is returned for text outside the command vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingStreamID is returned for start_stream without an id.
	ErrMissingStreamID = errors.New("start_stream requires a stream id")
)

const (
	cmdStop        = "stop"
	cmdStartStream = "start_stream"
	cmdStopStream  = "stop_stream"
	cameraPrefix   = "cam_"
	streamSep      = "|"
)

// Command is a directive understood by the vehicle. The set of implementations
// is closed to this package.
type Command interface {
	// Encode returns the text sent to the device.
	Encode() string
	// Kind is a short, bounded label used for logs and metrics.
	Kind() string

	command()
}

// Direction of a Drive command.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
)

// Drive moves the vehicle until the next Drive or Halt.
type Drive struct {
	Direction Direction
}

// Halt stops the motors.
type Halt struct{}

// StartStream tells the vehicle to start pushing video to StreamID.
type StartStream struct {
	StreamID string
}

// StopStream stops the video push.
type StopStream struct{}

// Camera moves the camera servo. Action is the part after "cam_", e.g. "up".
type Camera struct {
	Action string
}

func (c Drive) Encode() string       { return string(c.Direction) }
func (Halt) Encode() string          { return cmdStop }
func (c StartStream) Encode() string { return cmdStartStream + streamSep + c.StreamID }
func (StopStream) Encode() string    { return cmdStopStream }
func (c Camera) Encode() string      { return cameraPrefix + c.Action }

func (Drive) Kind() string       { return "drive" }
func (Halt) Kind() string        { return "halt" }
func (StartStream) Kind() string { return "start_stream" }
func (StopStream) Kind() string  { return "stop_stream" }
func (Camera) Kind() string      { return "camera" }

func (Drive) command()       {}
func (Halt) command()        {}
func (StartStream) command() {}
func (StopStream) command()  {}
func (Camera) command()      {}

// ParseCommand decodes device command text. Surrounding whitespace is ignored.
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)

	switch Direction(s) {
	case Forward, Backward, Left, Right:
		return Drive{Direction: Direction(s)}, nil
	}

	switch s {
	case cmdStop:
		return Halt{}, nil
	case cmdStopStream:
		return StopStream{}, nil
	}

	if rest, ok := strings.CutPrefix(s, cmdStartStream); ok {
		id, ok := strings.CutPrefix(rest, streamSep)
		if !ok || id == "" {
			return nil, ErrMissingStreamID
		}
		return StartStream{StreamID: id}, nil
	}

	if action, ok := strings.CutPrefix(s, cameraPrefix); ok && action != "" {
		return Camera{Action: action}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// IsControl reports whether a controller may send cmd. Stream management is
// reserved to the rental lifecycle.
func IsControl(cmd Command) bool {
	switch cmd.(type) {
	case Drive, Halt, Camera:
		return true
	default:
		return false
	}
}
