package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewImage_Sniffs(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	img := NewImage(png, "board", "")
	require.Equal(t, "image/png", img.MIMEType)
	require.True(t, img.IsImage())
	require.Equal(t, "png", img.Extension())

	txt := NewImage([]byte("hello"), "notes.txt", "")
	require.Equal(t, "text/plain", txt.MIMEType)
	require.False(t, txt.IsImage())
}

func TestImageExtension(t *testing.T) {
	require.Equal(t, "jpeg", Image{Filename: "a.JPEG"}.Extension())
	require.Equal(t, "webp", Image{MIMEType: "image/webp"}.Extension())
	require.Equal(t, "jpg", Image{}.Extension())
}

func TestDeviceError(t *testing.T) {
	err := &DeviceError{Reason: DevicePermissionDenied}
	require.Contains(t, err.UserMessage(), "denied")
	require.Equal(t, "camera permission_denied", err.Error())
	require.Contains(t, (&DeviceError{Reason: DeviceOther}).UserMessage(), "Upload photos")
}
