package entity

import "fmt"

// DeviceFailureReason classifies a camera failure.
type DeviceFailureReason string

const (
	DevicePermissionDenied DeviceFailureReason = "permission_denied"
	DeviceNotFound         DeviceFailureReason = "device_not_found"
	DeviceNotSupported     DeviceFailureReason = "not_supported"
	DeviceOther            DeviceFailureReason = "other"
)

// DeviceError is a recoverable camera failure. File upload stays available.
type DeviceError struct {
	Reason DeviceFailureReason
	Cause  error
}

func (e *DeviceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("camera %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("camera %s", e.Reason)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the remediation text shown to the inspector.
func (e *DeviceError) UserMessage() string {
	switch e.Reason {
	case DevicePermissionDenied:
		return "Camera access was denied. Allow camera access for this application and try again, or upload photos instead."
	case DeviceNotFound:
		return "No camera was found. Connect a camera or upload photos instead."
	case DeviceNotSupported:
		return "Live camera capture is not supported on this device. Upload photos instead."
	}
	return "The camera could not be started. Upload photos instead."
}
