package uploaders

import (
	"context"
	"errors"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the part of *tgbotapi.BotAPI the uploader uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramUploader posts the rendered video to a chat or channel
type TelegramUploader struct {
	bot    TelegramSender
	chatID int64
}

// NewTelegramUploader creates a new Telegram uploader
func NewTelegramUploader(bot TelegramSender, chatID int64) *TelegramUploader {
	return &TelegramUploader{bot: bot, chatID: chatID}
}

// Platform returns the platform name
func (t *TelegramUploader) Platform() string {
	return "telegram"
}

// Upload sends the video file with its caption
func (t *TelegramUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if t.chatID == 0 {
		return failed(t.Platform(), errors.New("TELEGRAM_CHAT_ID not set"))
	}
	if _, err := os.Stat(req.Video.Path); err != nil {
		return failed(t.Platform(), fmt.Errorf("open video: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return failed(t.Platform(), err)
	}

	v := tgbotapi.NewVideo(t.chatID, tgbotapi.FilePath(req.Video.Path))
	v.Caption = req.Caption
	if v.Caption == "" {
		v.Caption = fmt.Sprintf("🎬 %.1fs narration video (run %s)", req.Video.DurationS, req.RunID)
	}
	v.Duration = int(req.Video.DurationS + 0.5)
	v.SupportsStreaming = true

	msg, err := t.bot.Send(v)
	if err != nil {
		return &UploadResult{
			Success:  false,
			Platform: t.Platform(),
			Error:    err.Error(),
			Details:  map[string]string{"chat_id": fmt.Sprint(t.chatID)},
		}, fmt.Errorf("telegram post failed: %w", err)
	}

	return &UploadResult{
		Success:  true,
		Platform: t.Platform(),
		Details: map[string]string{
			"status":     "video sent",
			"message_id": fmt.Sprint(msg.MessageID),
		},
	}, nil
}
