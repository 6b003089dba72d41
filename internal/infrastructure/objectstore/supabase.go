// Package objectstore uploads evidence images to hosted object storage.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

// Config selects the storage project and bucket.
type Config struct {
	BaseURL   string // https://<project>.supabase.co
	APIKey    string
	Bucket    string
	Namespace string // first path segment, e.g. "eicr"
	Timeout   time.Duration
}

// SupabaseStorage talks to the storage REST API.
type SupabaseStorage struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewSupabaseStorage builds the client. A nil httpClient gets a client with cfg.Timeout.
func NewSupabaseStorage(cfg Config, httpClient *http.Client) *SupabaseStorage {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SupabaseStorage{cfg: cfg, client: httpClient, now: time.Now}
}

// ObjectPath returns <namespace>/<unix-millis>-<random>.<ext>.
func (s *SupabaseStorage) ObjectPath(img entity.Image) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), suffix, img.Extension())
	if s.cfg.Namespace == "" {
		return name
	}
	return s.cfg.Namespace + "/" + name
}

// PublicURL is the public address of an object path.
func (s *SupabaseStorage) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.cfg.BaseURL, url.PathEscape(s.cfg.Bucket), path)
}

// Upload stores img under a fresh path and returns its public URL.
func (s *SupabaseStorage) Upload(ctx context.Context, img entity.Image) (string, error) {
	const op = "objectstore.upload"

	if len(img.Data) == 0 {
		return "", apperrors.New(apperrors.KindUpload, op, "image is empty")
	}

	path := s.ObjectPath(img)
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.cfg.BaseURL, url.PathEscape(s.cfg.Bucket), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(img.Data))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpload, op, "build upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Content-Type", img.MIMEType)
	req.Header.Set("Cache-Control", "3600")
	req.Header.Set("x-upsert", "false")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpload, op, "upload failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpload, op, "read upload response", err)
	}

	if resp.StatusCode >= 400 {
		return "", apperrors.New(apperrors.KindUpload, op, storageErrorMessage(resp, body))
	}

	return s.PublicURL(path), nil
}

// storageErrorMessage extracts the service message, falling back to the status.
func storageErrorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "storage returned " + resp.Status
}

var _ port.ObjectStorage = (*SupabaseStorage)(nil)
