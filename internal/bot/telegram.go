package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/scheduler"
	"narration-video-gen/internal/uploaders"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Deps are what the bot commands act on. Sweep and Entries are optional.
type Deps struct {
	Pipeline   scheduler.Pipeline
	Uploads    *uploaders.Manager
	OutputPath string
	Sweep      func() (artifacts.Report, error)
	Entries    func() int
}

type TelegramBot struct {
	tg         API
	deps       Deps
	log        *logging.Logger
	errorsPath string
	adminChat  int64
	cancelFunc context.CancelFunc
	limits     memLimits

	startedAt time.Time
	renders   sync.WaitGroup

	mu        sync.Mutex
	busy      bool
	completed int
	failed    int
	lastErr   string
	lastRunAt time.Time
}

func NewTelegramBot(api API, deps Deps, adminChat int64, errorsPath string, log *logging.Logger) *TelegramBot {
	return &TelegramBot{
		tg:         api,
		deps:       deps,
		log:        log,
		errorsPath: errorsPath,
		adminChat:  adminChat,
		limits:     defaultMemLimits,
		startedAt:  time.Now(),
	}
}

// Run handles updates until ctx is done, then waits for renders it started.
// cancel is called by the memory watcher on a critical leak.
func (b *TelegramBot) Run(ctx context.Context, cancel context.CancelFunc) error {
	b.cancelFunc = cancel
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started")

	go b.runMemoryWatcher(ctx)
	defer b.renders.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil && upd.Message.IsCommand() {
				b.handleCommand(ctx, upd.Message)
			}
		}
	}
}

// publicCommands may be used from any chat. Everything else is admin only.
var publicCommands = map[string]bool{"start": true, "help": true, "chatid": true}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()

	if !publicCommands[cmd] && (b.adminChat == 0 || chatID != b.adminChat) {
		b.log.Warnf("bot: rejected /%s from chat %d", cmd, chatID)
		b.replyText(chatID, "⛔ This command only works in the admin chat. Use /chatid to see this chat's ID.")
		return
	}

	switch cmd {
	case "start":
		b.replyText(chatID, "Hi! I render narrated videos. Type /help for the command list.")
	case "help":
		b.cmdHelp(chatID)
	case "render":
		b.cmdRender(ctx, chatID, msg.CommandArguments())
	case "status":
		b.cmdStatus(chatID)
	case "errors":
		b.cmdErrors(chatID)
	case "sweep":
		b.cmdSweep(chatID)
	case "chatid":
		b.cmdChatID(chatID)
	default:
		b.replyText(chatID, "Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp(chatID int64) {
	help := `Commands:
/start - greeting
/help - this help
/render <text> - narrate text over the background video and publish it
/status - run counters and memory usage
/errors - download errors.log
/sweep - delete stale temp files left by crashed runs
/chatid - show this chat ID

Progress and the finished video are posted to the configured chat.`
	b.replyText(chatID, help)
}

func (b *TelegramBot) cmdRender(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		b.replyText(chatID, "Usage: /render <text>")
		return
	}

	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		b.replyText(chatID, "⏳ A render is already running, try again when it finishes.")
		return
	}
	b.busy = true
	b.mu.Unlock()

	b.replyText(chatID, fmt.Sprintf("🎬 Rendering %d words...", len(strings.Fields(text))))

	job := &scheduler.RenderJob{
		Pipeline:   b.deps.Pipeline,
		Text:       func(context.Context) (string, error) { return text, nil },
		Uploads:    b.deps.Uploads,
		OutputPath: b.deps.OutputPath,
		Log:        b.log,
	}
	b.renders.Add(1)
	go func() {
		defer b.renders.Done()
		err := job.Run(ctx)
		var publishErr error
		if errors.Is(err, scheduler.ErrPublish) {
			publishErr, err = err, nil
		}

		b.mu.Lock()
		b.busy = false
		b.lastRunAt = time.Now()
		if err != nil {
			b.failed++
			b.lastErr = err.Error()
		} else {
			b.completed++
			b.lastErr = ""
		}
		b.mu.Unlock()

		if err != nil {
			b.log.Errorf("bot: render: %v", err)
			b.replyText(chatID, fmt.Sprintf("❌ Render failed: %v", err))
			return
		}
		if publishErr != nil {
			b.replyText(chatID, fmt.Sprintf("✅ Render finished\n⚠️ %v", publishErr))
			return
		}
		b.replyText(chatID, "✅ Render finished")
	}()
}

func (b *TelegramBot) cmdStatus(chatID int64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	b.mu.Lock()
	state := "idle"
	if b.busy {
		state = "rendering"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Status:\n\n")
	fmt.Fprintf(&sb, "Pipeline: %s\n", state)
	fmt.Fprintf(&sb, "Renders: %d ok, %d failed\n", b.completed, b.failed)
	if !b.lastRunAt.IsZero() {
		fmt.Fprintf(&sb, "Last run: %s\n", b.lastRunAt.Format("2006-01-02 15:04:05"))
	}
	if b.lastErr != "" {
		fmt.Fprintf(&sb, "Last error: %s\n", b.lastErr)
	}
	b.mu.Unlock()

	if b.deps.Entries != nil {
		fmt.Fprintf(&sb, "Scheduled jobs: %d\n", b.deps.Entries())
	}
	fmt.Fprintf(&sb, "Uptime: %s\n", time.Since(b.startedAt).Round(time.Second))
	fmt.Fprintf(&sb, "Heap: %d MB, goroutines: %d", ms.HeapAlloc/(1024*1024), runtime.NumGoroutine())
	b.replyText(chatID, sb.String())
}

func (b *TelegramBot) cmdErrors(chatID int64) {
	f, err := os.Open(b.errorsPath)
	if err != nil {
		b.log.Errorf("open errors.log: %v", err)
		b.replyText(chatID, "❌ Could not open errors.log")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		b.log.Errorf("stat errors.log: %v", err)
		b.replyText(chatID, "❌ Could not read errors.log")
		return
	}

	if info.Size() == 0 {
		b.replyText(chatID, "📋 errors.log is empty")
		return
	}

	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: "errors.log", Reader: f})
	msg.Caption = fmt.Sprintf("📋 errors.log (%d bytes)", info.Size())

	if _, err := b.tg.Send(msg); err != nil {
		b.log.Errorf("send errors.log: %v", err)
		b.replyText(chatID, "❌ Could not send the file")
	}
}

func (b *TelegramBot) cmdSweep(chatID int64) {
	if b.deps.Sweep == nil {
		b.replyText(chatID, "Sweep is not configured")
		return
	}
	report, err := b.deps.Sweep()
	if err != nil {
		b.log.Errorf("bot: sweep: %v", err)
		b.replyText(chatID, fmt.Sprintf("❌ Sweep failed: %v", err))
		return
	}
	b.replyText(chatID, fmt.Sprintf("🧹 Sweep: %d deleted, %d warnings", report.Count(artifacts.Deleted), len(report.Warnings)))
}

func (b *TelegramBot) cmdChatID(chatID int64) {
	b.replyText(chatID, fmt.Sprintf("Your chat ID: %d", chatID))
}

func (b *TelegramBot) replyText(chatID int64, text string) int {
	m := tgbotapi.NewMessage(chatID, text)
	sent, err := b.tg.Send(m)
	if err != nil {
		b.log.Warnf("bot: send to %d: %v", chatID, err)
	}
	return sent.MessageID
}
