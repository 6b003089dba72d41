//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// GoCVCamera without OpenCV: Start always reports not_supported.
type GoCVCamera struct {
	EnvironmentDevice int
	UserDevice        int
	JPEGQuality       int
}

func NewGoCVCamera(environmentDevice, userDevice int) *GoCVCamera {
	return &GoCVCamera{EnvironmentDevice: environmentDevice, UserDevice: userDevice, JPEGQuality: 90}
}

func (c *GoCVCamera) Start(ctx context.Context, facing port.Facing) error {
	return &entity.DeviceError{Reason: entity.DeviceNotSupported, Cause: errNoGoCV}
}

func (c *GoCVCamera) Capture(ctx context.Context) (entity.Image, error) {
	return entity.Image{}, errNoGoCV
}

func (c *GoCVCamera) Stop() error { return nil }

func (c *GoCVCamera) Active() bool { return false }

var _ port.Camera = (*GoCVCamera)(nil)
