package bus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection marks failures to reach the backend or join the room.
	ErrConnection = errors.New("connection error")

	// ErrDevice marks failures to acquire a local media device.
	ErrDevice = errors.New("device error")
)

// Connection tags err as a connection failure.
func Connection(err error) error {
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// AlertFor converts err into the alert shown to the user. Errors wrapping
// ErrDevice become device alerts; everything else is a connection alert.
func AlertFor(err error) Alert {
	if errors.Is(err, ErrDevice) {
		return Alert{
			Kind:        AlertDevice,
			Title:       "Error acquiring device",
			Description: strings.TrimPrefix(err.Error(), ErrDevice.Error()+": "),
		}
	}
	return Alert{
		Kind:        AlertConnection,
		Title:       "There was an error connecting to the agent",
		Description: strings.TrimPrefix(err.Error(), ErrConnection.Error()+": "),
	}
}
