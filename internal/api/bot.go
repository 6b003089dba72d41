package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "eicr-vision/internal/application"
	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

const (
	msgStart = `👋 Hi! I review photos of electrical installations and flag likely EICR observations (C1, C2, C3, FI).

📸 Send photos of the installation, then /analyze.
🧭 Or use /capture for a guided checklist.

📋 Commands:
/capture — guided capture
/analyze — analyse the photos sent so far
/help — full command list
/exit — abandon the current work`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send one or more photos (the first is the primary image)
2️⃣ /analyze
3️⃣ Review the findings, export a PDF or hand findings to an EICR

💡 Tips:
• Good lighting, no flash glare
• Fill the frame with the board or accessory
• Keep the camera steady

📋 Capture:
/capture — pick a checklist and follow the steps
/retake — discard the last photo
/finish — end capture and analyse

📋 Collection:
/photos — list photos
/primary N — make photo N the primary image
/remove N — remove photo N

📋 Results:
/filter C1|C2|C3|FI|all
/details N — fix pack for finding N
/summary — plain-text summary
/export — PDF report
/evidence — primary photo with findings marked
/eicr N REPORT — add finding N to an EICR report
/observations REPORT — list what a report holds
/history, /open ID
/retry — retry a failed analysis

📋 Settings:
/settings, /threshold 0.1-1.0, /background on|off`

	msgCapturePrompt   = "🧭 Choose what you are inspecting:"
	msgCollectionEmpty = "📭 No photos yet. Send a photo first."
	msgUnknownCommand  = "❓ Unknown command. Use /help for the command list."
	msgSendPhoto       = "📸 Send a photo, or use /help."
	msgProcessing      = "⏳ Analysing %d photo(s)..."
	msgExited          = "❌ Stopped. Photos and the current capture were cleared; history is kept."
	msgNoResults       = "📭 No analysis yet. Send photos and /analyze."
	msgDownloadError   = "⚠️ Could not download that file from Telegram. Please send it again."
	msgNotAnImage      = "⚠️ That file is not an image."
	msgObservationsErr = "⚠️ Could not read the EICR records."
)

// maxDownload caps the size of a single photo or document.
const maxDownload = 20 << 20

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Subscriber delivers service notifications to the bot.
type Subscriber interface {
	Subscribe(fn func(entity.Notification)) (func(), error)
}

// Bot represents the Telegram bot
type Bot struct {
	api        API
	token      string
	inspection *app.InspectionService
	events     Subscriber
	http       *http.Client
	logger     *slog.Logger

	// chats maps a user to the chat notifications go to.
	chats sync.Map
	wg    sync.WaitGroup
}

// NewBot connects to Telegram with token.
func NewBot(token string, inspection *app.InspectionService, events Subscriber, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "telegram.connect", "telegram authorization failed", err)
	}
	logger.Info("authorized on telegram", "account", api.Self.UserName)
	return newBot(api, token, inspection, events, http.DefaultClient, logger), nil
}

func newBot(api API, token string, inspection *app.InspectionService, events Subscriber, httpClient *http.Client, logger *slog.Logger) *Bot {
	return &Bot{
		api:        api,
		token:      token,
		inspection: inspection,
		events:     events,
		http:       httpClient,
		logger:     logger,
	}
}

// Run processes updates until ctx is cancelled, then waits for running
// analyses to stop.
func (b *Bot) Run(ctx context.Context) error {
	if b.events != nil {
		unsubscribe, err := b.events.Subscribe(b.forward)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage handles an incoming message
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	b.chats.Store(msg.From.ID, msg.Chat.ID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		// largest size last
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, msg, photo.FileID, fmt.Sprintf("photo-%d.jpg", msg.MessageID), "image/jpeg")
		return
	}

	if msg.Document != nil {
		if !strings.HasPrefix(msg.Document.MimeType, "image/") {
			b.sendMessage(msg.Chat.ID, msgNotAnImage)
			return
		}
		b.handleImage(ctx, msg, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleImage routes a photo to the running capture, or to the collection.
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, fileID, name, mimeType string) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.logger.Warn("download failed", "user", userID, "error", err)
		b.sendMessage(chatID, msgDownloadError)
		return
	}
	img := entity.NewImage(data, name, mimeType)

	if b.inspection.Workspace(userID).Wizard.Phase() != app.PhasePresetSelection {
		outcome, err := b.inspection.AddFrame(ctx, userID, img)
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		b.sendMessage(chatID, b.frameText(userID, outcome))
		return
	}

	n, err := b.inspection.AddFiles(ctx, userID, []entity.Image{img})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if n == 0 {
		return
	}
	images, _ := b.inspection.Collection(userID)
	b.sendMessage(chatID, fmt.Sprintf("📥 Photo added. %d in the collection. Send more or /analyze.", len(images)))
}

// forward sends a service notification to the user's chat.
func (b *Bot) forward(n entity.Notification) {
	chatID := n.SessionID
	if v, ok := b.chats.Load(n.SessionID); ok {
		chatID = v.(int64)
	}
	b.sendMessage(chatID, noticeText(n))
}

// async runs an analysis off the update loop so /exit can cancel it.
func (b *Bot) async(ctx context.Context, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

// downloadFile downloads a file from Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("file larger than %d bytes", maxDownload)
	}
	return data, nil
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message failed", "chat", chatID, "error", err)
	}
}

func (b *Bot) send(chatID int64, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("send failed", "chat", chatID, "error", err)
	}
}

// replyError answers input mistakes directly. Other failures already
// reached the user as notifications.
func (b *Bot) replyError(chatID int64, err error) {
	if apperrors.KindOf(err) == apperrors.KindInput {
		b.sendMessage(chatID, "⚠️ "+apperrors.UserMessage(err))
		return
	}
	b.logger.Warn("request failed", "chat", chatID, "error", err)
}
