package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "eicr-vision/internal/application"
	apperrors "eicr-vision/internal/platform/errors"
)

const presetCallbackPrefix = "preset:"

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		if err := b.inspection.Reset(ctx, userID, chatID); err != nil {
			b.logger.Warn("reset failed", "user", userID, "error", err)
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "capture", "presets":
		b.sendPresets(chatID)

	case "retake":
		if err := b.inspection.Retake(userID); err != nil {
			b.replyError(chatID, err)
			return
		}
		wizard := b.inspection.Workspace(userID).Wizard
		b.sendMessage(chatID, fmt.Sprintf("↩️ Last photo removed.\n📸 Step %d: %s", wizard.Step()+1, wizard.Instruction()))

	case "finish":
		n, err := b.inspection.FinishCapture(ctx, userID, chatID)
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgProcessing, n))
		b.analyze(ctx, userID, chatID, func(ctx context.Context) (*app.AnalysisOutcome, error) {
			return b.inspection.AnalyzeCollection(ctx, userID, chatID)
		})

	case "analyze", "analyse":
		images, _ := b.inspection.Collection(userID)
		if len(images) == 0 {
			b.sendMessage(chatID, msgCollectionEmpty)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgProcessing, len(images)))
		b.analyze(ctx, userID, chatID, func(ctx context.Context) (*app.AnalysisOutcome, error) {
			return b.inspection.AnalyzeCollection(ctx, userID, chatID)
		})

	case "retry":
		b.sendMessage(chatID, "🔁 Retrying...")
		b.analyze(ctx, userID, chatID, func(ctx context.Context) (*app.AnalysisOutcome, error) {
			return b.inspection.Retry(ctx, userID, chatID)
		})

	case "exit", "cancel":
		if err := b.inspection.Exit(ctx, userID, chatID); err != nil {
			b.logger.Warn("exit failed", "user", userID, "error", err)
		}
		b.sendMessage(chatID, msgExited)

	case "photos":
		b.sendCollection(userID, chatID)

	case "primary", "remove":
		n, ok := b.indexArg(chatID, args, "/"+msg.Command()+" N")
		if !ok {
			return
		}
		var err error
		if msg.Command() == "primary" {
			err = b.inspection.SetPrimary(userID, n)
		} else {
			err = b.inspection.RemoveImage(userID, n)
		}
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		b.sendCollection(userID, chatID)

	case "filter":
		view := b.inspection.View(userID)
		if view == nil {
			b.sendMessage(chatID, msgNoResults)
			return
		}
		f, err := app.ParseFilter(strings.Join(args, " "))
		if err == nil {
			err = view.SetFilter(f)
		}
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		b.sendMessage(chatID, resultsText(view))

	case "details":
		view := b.inspection.View(userID)
		if view == nil {
			b.sendMessage(chatID, msgNoResults)
			return
		}
		n, ok := b.indexArg(chatID, args, "/details N")
		if !ok {
			return
		}
		finding, pack, err := view.Finding(n)
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		if !view.Expanded(n) {
			view.Toggle(n)
		}
		b.sendMessage(chatID, fixPackText(n, finding, pack))

	case "summary":
		view := b.inspection.View(userID)
		if view == nil {
			b.sendMessage(chatID, msgNoResults)
			return
		}
		b.sendMessage(chatID, view.CopySummary())

	case "export":
		b.sendReport(userID, chatID)

	case "evidence":
		img, err := b.inspection.RenderEvidence(userID, "")
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "evidence." + img.Extension(), Bytes: img.Data})
		photo.Caption = "🔍 Findings marked on the primary photo"
		b.send(chatID, photo)

	case "eicr":
		if len(args) != 2 {
			b.sendMessage(chatID, "Usage: /eicr N REPORT")
			return
		}
		n, ok := b.indexArg(chatID, args[:1], "/eicr N REPORT")
		if !ok {
			return
		}
		if _, err := b.inspection.AddToEICR(ctx, userID, "", n, args[1]); err != nil {
			b.replyError(chatID, err)
		}

	case "observations":
		if len(args) != 1 {
			b.sendMessage(chatID, "Usage: /observations REPORT")
			return
		}
		list, err := b.inspection.Observations(ctx, args[0])
		if err != nil {
			b.logger.Error("list observations failed", "report", args[0], "error", err)
			b.sendMessage(chatID, msgObservationsErr)
			return
		}
		b.sendMessage(chatID, observationsText(args[0], list))

	case "history":
		b.sendMessage(chatID, historyText(b.inspection.History(userID)))

	case "open":
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		if _, err := b.inspection.Open(userID, chatID, id); err != nil {
			b.replyError(chatID, err)
			return
		}
		b.sendResults(userID, chatID)

	case "settings":
		b.sendMessage(chatID, settingsText(b.inspection.Settings(userID)))

	case "threshold":
		if len(args) != 1 {
			b.sendMessage(chatID, "Usage: /threshold 0.1-1.0")
			return
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			b.sendMessage(chatID, "Usage: /threshold 0.1-1.0")
			return
		}
		s := b.inspection.Settings(userID)
		s.ConfidenceThreshold = v
		b.sendMessage(chatID, settingsText(b.inspection.SetSettings(userID, s)))

	case "background":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			b.sendMessage(chatID, "Usage: /background on|off")
			return
		}
		s := b.inspection.Settings(userID)
		s.RemoveBackground = args[0] == "on"
		b.sendMessage(chatID, settingsText(b.inspection.SetSettings(userID, s)))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleCallback handles inline keyboard presses.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
	if q.From == nil || q.Message == nil {
		return
	}
	userID, chatID := q.From.ID, q.Message.Chat.ID
	b.chats.Store(userID, chatID)

	presetID, ok := strings.CutPrefix(q.Data, presetCallbackPrefix)
	if !ok {
		return
	}
	preset, err := b.inspection.StartCapture(ctx, userID, chatID, presetID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, captureStartText(preset))
}

// analyze runs fn in the background and posts the results. Failures were
// already reported through notifications.
func (b *Bot) analyze(ctx context.Context, userID, chatID int64, fn func(ctx context.Context) (*app.AnalysisOutcome, error)) {
	b.async(ctx, func(ctx context.Context) {
		if _, err := fn(ctx); err != nil {
			b.logger.Info("analysis ended without result", "user", userID, "kind", apperrors.KindOf(err), "error", err)
			return
		}
		b.sendResults(userID, chatID)
	})
}

func (b *Bot) sendResults(userID, chatID int64) {
	view := b.inspection.View(userID)
	if view == nil {
		b.sendMessage(chatID, msgNoResults)
		return
	}
	b.sendMessage(chatID, resultsText(view))
}

func (b *Bot) sendPresets(chatID int64) {
	presets := b.inspection.Presets()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(presets))
	for _, p := range presets {
		label := fmt.Sprintf("%s (%d photos)", p.Name, p.EstimatedPhotos)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, presetCallbackPrefix+p.ID),
		))
	}
	msg := tgbotapi.NewMessage(chatID, msgCapturePrompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(chatID, msg)
}

func (b *Bot) sendCollection(userID, chatID int64) {
	images, primary := b.inspection.Collection(userID)
	b.sendMessage(chatID, collectionText(images, primary))
}

func (b *Bot) sendReport(userID, chatID int64) {
	view := b.inspection.View(userID)
	if view == nil {
		b.sendMessage(chatID, msgNoResults)
		return
	}
	id := view.Entry().ID
	pdf, err := b.inspection.ExportPDF(userID, id)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "eicr-analysis-" + id + ".pdf", Bytes: pdf})
	doc.Caption = "📄 EICR visual analysis report"
	b.send(chatID, doc)
}

// indexArg parses a 1-based index from args[0] into a 0-based one.
func (b *Bot) indexArg(chatID int64, args []string, usage string) (int, bool) {
	if len(args) == 0 {
		b.sendMessage(chatID, "Usage: "+usage)
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		b.sendMessage(chatID, "Usage: "+usage)
		return 0, false
	}
	return n - 1, true
}
