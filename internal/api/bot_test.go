package telegram

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eicr-vision/config"
	"eicr-vision/internal/container"
	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/platform/logging"
)

const analysisBody = `{
  "analysis": {
    "findings": [
      {"description": "Scorching at MCB terminal", "eicr_code": "C2", "confidence": 0.87,
       "bs7671_clauses": ["526.1"], "location": "Way 4", "fix_guidance": "Re-terminate"}
    ],
    "recommendations": [],
    "compliance_summary": {"overall_assessment": "unsatisfactory", "c1_count": 0, "c2_count": 1, "c3_count": 0, "fi_count": 0, "safety_rating": 6},
    "summary": "One C2 observation"
  }
}`

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	answered []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: cfg.FileID, FilePath: "photos/" + cfg.FileID + ".png"}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) anyText(substr string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func (f *fakeAPI) sentOfType(match func(tgbotapi.Chattable) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if match(c) {
			n++
		}
	}
	return n
}

type botFixture struct {
	bot  *Bot
	api  *fakeAPI
	mock *httpmock.MockTransport
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			URL:       "https://proj.supabase.co",
			APIKey:    "service-key",
			Bucket:    "eicr-images",
			Namespace: "analysis",
			Timeout:   5 * time.Second,
		},
		Analysis: config.AnalysisConfig{
			Backend:             config.BackendFunction,
			Function:            "analyze-eicr-image",
			Timeout:             5 * time.Second,
			ConfidenceThreshold: 0.7,
			BS7671Compliance:    true,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "eicr.db")},
		Session:  config.SessionConfig{TTL: time.Hour, HistoryLimit: 5},
	}

	mock := httpmock.NewMockTransport()
	client := &http.Client{Transport: mock}
	c, err := container.New(cfg, container.Options{Logger: logging.Discard(), HTTPClient: client})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	mock.RegisterResponder(http.MethodGet, `=~^https://api\.telegram\.org/file/bottest-token/photos/`,
		httpmock.NewBytesResponder(http.StatusOK, pngBytes(t)))
	mock.RegisterResponder(http.MethodPost, `=~^https://proj\.supabase\.co/storage/v1/object/eicr-images/`,
		httpmock.NewStringResponder(http.StatusOK, `{"Key":"x"}`))
	mock.RegisterResponder(http.MethodPost, "https://proj.supabase.co/functions/v1/analyze-eicr-image",
		httpmock.NewStringResponder(http.StatusOK, analysisBody))

	api := &fakeAPI{}
	b := newBot(api, "test-token", c.InspectionService, c.Notifications, client, logging.Discard())
	unsubscribe, err := c.Notifications.Subscribe(b.forward)
	require.NoError(t, err)
	t.Cleanup(unsubscribe)

	return &botFixture{bot: b, api: api, mock: mock}
}

// send delivers an update and waits for any analysis it started.
func (f *botFixture) send(u tgbotapi.Update) {
	f.bot.handleUpdate(context.Background(), u)
	f.bot.wg.Wait()
}

const userID = int64(42)

func command(text string) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func photo(id string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Photo: []tgbotapi.PhotoSize{
			{FileID: id + "-small", Width: 90, Height: 67},
			{FileID: id, Width: 64, Height: 48},
		},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestBot_StartHelpUnknown(t *testing.T) {
	f := newBotFixture(t)

	f.send(command("/start"))
	assert.Equal(t, msgStart, f.api.last())

	f.send(command("/help"))
	assert.Equal(t, msgHelp, f.api.last())

	f.send(command("/frobnicate"))
	assert.Equal(t, msgUnknownCommand, f.api.last())

	f.send(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID}, Chat: &tgbotapi.Chat{ID: userID}, Text: "hello",
	}})
	assert.Equal(t, msgSendPhoto, f.api.last())
}

func TestBot_GuidedCaptureToResults(t *testing.T) {
	f := newBotFixture(t)

	f.send(command("/capture"))
	keyboards := f.api.sentOfType(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		return ok && m.ReplyMarkup != nil
	})
	assert.Equal(t, 1, keyboards)

	f.send(callback("preset:socket-outlets"))
	assert.Equal(t, []string{"cb-1"}, f.api.answered)
	assert.Contains(t, f.api.last(), "Sockets & Accessories")
	assert.Contains(t, f.api.last(), "Step 1/3: Accessory face-on")

	f.send(photo("p1"))
	assert.True(t, f.api.anyText("Step 1/3 captured"))
	assert.True(t, f.api.anyText("Step 2/3: Close-up of any scorching"))

	f.send(command("/retake"))
	assert.Contains(t, f.api.last(), "Step 1: Accessory face-on")

	for _, id := range []string{"p1", "p2", "p3"} {
		f.send(photo(id))
	}
	assert.True(t, f.api.anyText("Send /finish"))

	f.send(command("/finish"))
	assert.True(t, f.api.anyText("Analysing 3 photo(s)"))
	assert.True(t, f.api.anyText("Analysis complete"))
	assert.True(t, f.api.anyText("[C2] Scorching at MCB terminal (87%)"))

	images, _ := f.bot.inspection.Collection(userID)
	assert.Len(t, images, 3)
}

func TestBot_CollectionAnalyzeAndExport(t *testing.T) {
	f := newBotFixture(t)

	f.send(photo("a"))
	f.send(photo("b"))
	assert.Contains(t, f.api.last(), "2 in the collection")

	f.send(command("/primary 2"))
	assert.Regexp(t, `(?m)^2\. .* ⭐ primary$`, f.api.last())

	f.send(command("/analyze"))
	assert.True(t, f.api.anyText("Analysing 2 photo(s)"))
	assert.Contains(t, f.api.last(), "UNSATISFACTORY | Safety rating 6/10")

	f.send(command("/export"))
	docs := f.api.sentOfType(func(c tgbotapi.Chattable) bool {
		_, ok := c.(tgbotapi.DocumentConfig)
		return ok
	})
	assert.Equal(t, 1, docs)

	f.send(command("/evidence"))
	photos := f.api.sentOfType(func(c tgbotapi.Chattable) bool {
		_, ok := c.(tgbotapi.PhotoConfig)
		return ok
	})
	assert.Equal(t, 1, photos)

	f.send(command("/eicr 1 EICR-9"))
	assert.Contains(t, f.api.last(), "Added to EICR")

	f.send(command("/observations EICR-9"))
	assert.Contains(t, f.api.last(), "[C2] Scorching at MCB terminal (Way 4)")

	f.send(command("/eicr 5 EICR-9"))
	assert.Contains(t, f.api.last(), "no finding 5")
}

func TestBot_FilterAndDetails(t *testing.T) {
	f := newBotFixture(t)
	f.send(photo("a"))
	f.send(command("/analyze"))

	f.send(command("/filter C1"))
	assert.True(t, strings.HasPrefix(f.api.last(), "⚠️"))

	f.send(command("/filter c2"))
	assert.Contains(t, f.api.last(), "Showing C2 only")

	f.send(command("/details 1"))
	assert.Contains(t, f.api.last(), "Steps:")
	assert.Contains(t, f.api.last(), "BS 7671: 526.1")
	assert.True(t, f.bot.inspection.View(userID).Expanded(0))

	f.send(command("/summary"))
	assert.Contains(t, f.api.last(), "EICR Visual Analysis")
}

func TestBot_AnalyzeWithoutPhotos(t *testing.T) {
	f := newBotFixture(t)

	f.send(command("/analyze"))
	assert.Equal(t, msgCollectionEmpty, f.api.last())
	assert.Zero(t, f.mock.GetTotalCallCount())

	f.send(command("/summary"))
	assert.Equal(t, msgNoResults, f.api.last())
}

func TestBot_RejectsNonImageDocument(t *testing.T) {
	f := newBotFixture(t)

	f.send(tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Document: &tgbotapi.Document{FileID: "doc", FileName: "notes.txt", MimeType: "text/plain"},
	}})
	assert.Equal(t, msgNotAnImage, f.api.last())
}

func TestBot_Settings(t *testing.T) {
	f := newBotFixture(t)

	f.send(command("/threshold 0.85"))
	assert.Contains(t, f.api.last(), "Confidence threshold: 0.85")

	f.send(command("/background on"))
	assert.Contains(t, f.api.last(), "Background removal: on")

	f.send(command("/threshold high"))
	assert.Equal(t, "Usage: /threshold 0.1-1.0", f.api.last())
}

func TestNoticeText(t *testing.T) {
	tests := []struct {
		name string
		in   entity.Notification
		want string
	}{
		{"info", entity.Notification{Level: entity.NoticeInfo, Title: "Analysis complete", Message: "1 finding(s)"}, "ℹ️ Analysis complete\n1 finding(s)"},
		{"warning without message", entity.Notification{Level: entity.NoticeWarning, Title: "Low quality"}, "⚠️ Low quality"},
		{"error", entity.Notification{Level: entity.NoticeError, Title: "Upload failed", Message: "Bucket not found"}, "❌ Upload failed\nBucket not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, noticeText(tt.in))
		})
	}
}
