package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

// AcquisitionController owns one camera handle and the ordered image
// collection of a session. Camera and file sources both end up here.
type AcquisitionController struct {
	sessionID int64
	camera    port.Camera // nil when frames only arrive by push
	pre       port.Preprocessor
	notifier  port.Notifier
	logger    *slog.Logger

	mu      sync.Mutex
	images  []entity.Image
	primary int
}

func NewAcquisitionController(sessionID int64, camera port.Camera, pre port.Preprocessor, notifier port.Notifier, logger *slog.Logger) *AcquisitionController {
	return &AcquisitionController{
		sessionID: sessionID,
		camera:    camera,
		pre:       pre,
		notifier:  notifier,
		logger:    logger.With("component", "acquisition", "session", sessionID),
	}
}

// StartCamera opens the camera. Failures are published as notifications and
// reported as false; they never abort the caller.
func (c *AcquisitionController) StartCamera(ctx context.Context, facing port.Facing) bool {
	if err := c.startCamera(ctx, facing); err != nil {
		c.notifyDeviceError(err)
		return false
	}
	return c.camera != nil
}

func (c *AcquisitionController) startCamera(ctx context.Context, facing port.Facing) error {
	if c.camera == nil {
		return nil
	}
	if c.camera.Active() {
		return nil
	}
	if err := c.camera.Start(ctx, facing); err != nil {
		var devErr *entity.DeviceError
		if !errors.As(err, &devErr) {
			devErr = &entity.DeviceError{Reason: entity.DeviceOther, Cause: err}
		}
		return devErr
	}
	c.logger.Debug("camera started", "facing", facing)
	return nil
}

func (c *AcquisitionController) notifyDeviceError(err error) {
	var devErr *entity.DeviceError
	if !errors.As(err, &devErr) {
		devErr = &entity.DeviceError{Reason: entity.DeviceOther, Cause: err}
	}
	c.logger.Warn("camera unavailable", "reason", devErr.Reason, "error", devErr.Cause)
	c.notify(entity.NoticeWarning, "Camera unavailable", devErr.UserMessage())
}

// StopCamera releases the device. Safe to call at any time.
func (c *AcquisitionController) StopCamera() {
	if c.camera == nil || !c.camera.Active() {
		return
	}
	if err := c.camera.Stop(); err != nil {
		c.logger.Warn("camera stop failed", "error", err)
	}
}

// WithCamera runs fn with the camera open and always releases it afterwards.
func (c *AcquisitionController) WithCamera(ctx context.Context, facing port.Facing, fn func(ctx context.Context) error) error {
	if err := c.startCamera(ctx, facing); err != nil {
		c.notifyDeviceError(err)
		return err
	}
	defer c.StopCamera()
	return fn(ctx)
}

// CameraActive reports whether live capture is available.
func (c *AcquisitionController) CameraActive() bool {
	return c.camera != nil && c.camera.Active()
}

// CaptureFrame snapshots the live camera and appends the processed still.
func (c *AcquisitionController) CaptureFrame(ctx context.Context) (entity.Image, int, error) {
	const op = "acquisition.capture"
	if !c.CameraActive() {
		return entity.Image{}, -1, apperrors.New(apperrors.KindInput, op, "camera is not active")
	}

	img, err := c.camera.Capture(ctx)
	if err != nil {
		return entity.Image{}, -1, apperrors.Wrap(apperrors.KindInput, op, "could not capture a frame", err)
	}

	processed := c.preprocess(img)
	return processed, c.append(processed), nil
}

// Add processes and appends one pushed image.
func (c *AcquisitionController) Add(img entity.Image) (entity.Image, int) {
	processed := c.preprocess(img)
	return processed, c.append(processed)
}

// IngestFiles keeps only image files. When nothing is left it publishes a
// warning and returns an input error without touching the collection.
func (c *AcquisitionController) IngestFiles(ctx context.Context, files []entity.Image) (int, error) {
	accepted := make([]entity.Image, 0, len(files))
	for _, f := range files {
		if f.IsImage() {
			accepted = append(accepted, f)
		}
	}

	if len(accepted) == 0 {
		c.notify(entity.NoticeWarning, "No images selected", "Please choose image files (JPEG, PNG or WebP).")
		return 0, apperrors.New(apperrors.KindInput, "acquisition.ingest", "no image files in selection")
	}
	if skipped := len(files) - len(accepted); skipped > 0 {
		c.notify(entity.NoticeInfo, "Some files skipped", fmt.Sprintf("%d non-image file(s) were ignored.", skipped))
	}

	for _, f := range accepted {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		c.Add(f)
	}
	return len(accepted), nil
}

func (c *AcquisitionController) preprocess(img entity.Image) entity.Image {
	if c.pre == nil {
		return img
	}
	out, err := c.pre.Process(img)
	if err != nil {
		c.logger.Warn("preprocess failed, keeping original", "file", img.Filename, "error", err)
		return img
	}
	return out
}

func (c *AcquisitionController) append(img entity.Image) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, img)
	return len(c.images) - 1
}

// RemoveImage deletes the image at i and keeps the primary index valid.
func (c *AcquisitionController) RemoveImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(i)
}

func (c *AcquisitionController) removeLocked(i int) error {
	if i < 0 || i >= len(c.images) {
		return apperrors.New(apperrors.KindInput, "acquisition.remove", fmt.Sprintf("no image at position %d", i))
	}

	c.images = append(c.images[:i], c.images[i+1:]...)
	if i <= c.primary && c.primary > 0 {
		c.primary--
	}
	if c.primary >= len(c.images) {
		c.primary = max(0, len(c.images)-1)
	}
	return nil
}

// PopLast removes the most recent image.
func (c *AcquisitionController) PopLast() (entity.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 {
		return entity.Image{}, false
	}
	last := c.images[len(c.images)-1]
	_ = c.removeLocked(len(c.images) - 1)
	return last, true
}

func (c *AcquisitionController) SetPrimary(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.images) {
		return apperrors.New(apperrors.KindInput, "acquisition.primary", fmt.Sprintf("no image at position %d", i))
	}
	c.primary = i
	return nil
}

// PrimaryIndex is always within the collection, or 0 when it is empty.
func (c *AcquisitionController) PrimaryIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primary
}

// Images returns a copy of the collection.
func (c *AcquisitionController) Images() []entity.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.Image, len(c.images))
	copy(out, c.images)
	return out
}

func (c *AcquisitionController) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Replace swaps in an already processed collection with the first image
// as primary.
func (c *AcquisitionController) Replace(images []entity.Image) {
	c.mu.Lock()
	c.images = append([]entity.Image(nil), images...)
	c.primary = 0
	c.mu.Unlock()
}

// Reset clears the collection. The camera is left as it is.
func (c *AcquisitionController) Reset() {
	c.mu.Lock()
	c.images = nil
	c.primary = 0
	c.mu.Unlock()
}

func (c *AcquisitionController) notify(level entity.NoticeLevel, title, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(entity.Notification{SessionID: c.sessionID, Level: level, Title: title, Message: message})
}
