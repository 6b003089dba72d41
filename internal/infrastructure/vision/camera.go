//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// GoCVCamera captures stills from a local video device.
type GoCVCamera struct {
	EnvironmentDevice int // rear/scene camera
	UserDevice        int // front camera
	JPEGQuality       int

	mu sync.Mutex
	vc *gocv.VideoCapture
}

// NewGoCVCamera creates a camera bound to the given device indices.
func NewGoCVCamera(environmentDevice, userDevice int) *GoCVCamera {
	return &GoCVCamera{
		EnvironmentDevice: environmentDevice,
		UserDevice:        userDevice,
		JPEGQuality:       90,
	}
}

// Start opens the device. Calling Start on an active camera does nothing.
func (c *GoCVCamera) Start(ctx context.Context, facing port.Facing) error {
	if err := ctx.Err(); err != nil {
		return &entity.DeviceError{Reason: entity.DeviceOther, Cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc != nil {
		return nil
	}

	device := c.EnvironmentDevice
	if facing == port.FacingUser {
		device = c.UserDevice
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return &entity.DeviceError{Reason: classifyOpenError(err), Cause: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return &entity.DeviceError{Reason: entity.DeviceNotFound, Cause: fmt.Errorf("device %d is not opened", device)}
	}

	c.vc = vc
	return nil
}

// Capture reads one frame and encodes it as JPEG.
func (c *GoCVCamera) Capture(ctx context.Context) (entity.Image, error) {
	if err := ctx.Err(); err != nil {
		return entity.Image{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return entity.Image{}, errors.New("camera is not active")
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := c.vc.Read(&frame); !ok || frame.Empty() {
		return entity.Image{}, errors.New("failed to read frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), c.JPEGQuality})
	if err != nil {
		return entity.Image{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	name := fmt.Sprintf("capture-%d.jpg", time.Now().UnixMilli())
	return entity.Image{Data: data, MIMEType: "image/jpeg", Filename: name}, nil
}

// Stop releases the device. Safe to call when not started.
func (c *GoCVCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}

func (c *GoCVCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}

func classifyOpenError(err error) entity.DeviceFailureReason {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "denied"):
		return entity.DevicePermissionDenied
	case strings.Contains(msg, "no such"), strings.Contains(msg, "not found"), strings.Contains(msg, "error opening"):
		return entity.DeviceNotFound
	}
	return entity.DeviceOther
}

var _ port.Camera = (*GoCVCamera)(nil)
