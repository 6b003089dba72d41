package port

import (
	"context"

	"eicr-vision/internal/domain/entity"
)

// Facing selects the preferred camera.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Camera is a live media source. Start failures are *entity.DeviceError.
type Camera interface {
	Start(ctx context.Context, facing Facing) error
	// Capture snapshots the current frame as an encoded still.
	Capture(ctx context.Context) (entity.Image, error)
	// Stop releases the device; safe to call when not started.
	Stop() error
	Active() bool
}
