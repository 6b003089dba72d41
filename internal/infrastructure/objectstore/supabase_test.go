package objectstore

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

func newTestStorage(t *testing.T) (*SupabaseStorage, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	s := NewSupabaseStorage(Config{
		BaseURL:   "https://proj.supabase.co/",
		APIKey:    "anon-key",
		Bucket:    "visual-analysis",
		Namespace: "eicr",
	}, &http.Client{Transport: mock})
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return s, mock
}

func TestObjectPath(t *testing.T) {
	s, _ := newTestStorage(t)

	a := s.ObjectPath(entity.Image{Filename: "board.PNG"})
	b := s.ObjectPath(entity.Image{Filename: "board.PNG"})
	assert.Regexp(t, `^eicr/1700000000123-[0-9a-f]{12}\.png$`, a)
	assert.NotEqual(t, a, b)
}

func TestUpload_Success(t *testing.T) {
	s, mock := newTestStorage(t)

	var gotAuth, gotType string
	mock.RegisterRegexpResponder(http.MethodPost,
		regexp.MustCompile(`^https://proj\.supabase\.co/storage/v1/object/visual-analysis/eicr/1700000000123-[0-9a-f]{12}\.jpg$`),
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			gotType = req.Header.Get("Content-Type")
			return httpmock.NewStringResponse(http.StatusOK, `{"Key":"visual-analysis/eicr/x.jpg"}`), nil
		})

	u, err := s.Upload(context.Background(), entity.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg", Filename: "a.jpg"})
	require.NoError(t, err)
	assert.Regexp(t, `^https://proj\.supabase\.co/storage/v1/object/public/visual-analysis/eicr/1700000000123-[0-9a-f]{12}\.jpg$`, u)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestUpload_ServiceError(t *testing.T) {
	s, mock := newTestStorage(t)
	mock.RegisterRegexpResponder(http.MethodPost, regexp.MustCompile(`/storage/v1/object/`),
		httpmock.NewStringResponder(http.StatusBadRequest, `{"statusCode":"403","error":"Unauthorized","message":"new row violates row-level security policy"}`))

	_, err := s.Upload(context.Background(), entity.Image{Data: []byte{1}, MIMEType: "image/jpeg"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUpload))
	assert.Equal(t, "new row violates row-level security policy", apperrors.UserMessage(err))
}

func TestUpload_TransportError(t *testing.T) {
	s, mock := newTestStorage(t)
	mock.RegisterRegexpResponder(http.MethodPost, regexp.MustCompile(`/storage/v1/object/`),
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := s.Upload(context.Background(), entity.Image{Data: []byte{1}, MIMEType: "image/jpeg"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUpload))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestUpload_EmptyImage(t *testing.T) {
	s, mock := newTestStorage(t)
	_, err := s.Upload(context.Background(), entity.Image{})
	require.True(t, apperrors.IsKind(err, apperrors.KindUpload))
	assert.Zero(t, mock.GetTotalCallCount())
}
