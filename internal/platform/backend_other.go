//go:build !linux

package platform

import (
	"errors"
	"log/slog"
)

// NewX11Source is only available on Linux.
func NewX11Source(display string, logger *slog.Logger) (Source, error) {
	return nil, errors.New("x11 source is only supported on linux")
}
