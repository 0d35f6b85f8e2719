package notify

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"narration-video-gen/internal/logging"
)

// Sender is the part of *tgbotapi.BotAPI the observer uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// errorTailLines is how much of errors.log a failure message quotes.
const errorTailLines = 5

// TelegramObserver posts run start and outcome to one chat. Messages are
// queued and sent from a single goroutine so a slow API never blocks a run.
type TelegramObserver struct {
	bot        Sender
	chatID     int64
	errorsPath string
	log        *logging.Logger

	queue chan tgbotapi.Chattable
	done  chan struct{}
	once  sync.Once
}

func NewTelegramObserver(bot Sender, chatID int64, errorsPath string, log *logging.Logger) *TelegramObserver {
	o := &TelegramObserver{
		bot:        bot,
		chatID:     chatID,
		errorsPath: errorsPath,
		log:        log,
		queue:      make(chan tgbotapi.Chattable, 16),
		done:       make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *TelegramObserver) loop() {
	defer close(o.done)
	for msg := range o.queue {
		if _, err := o.bot.Send(msg); err != nil {
			o.log.Warnf("notify: telegram send failed: %v", err)
		}
	}
}

func (o *TelegramObserver) Progress(e Event) {
	if e.Stage != StageStarted {
		return
	}
	o.enqueue(fmt.Sprintf("🎬 Run %s started: %s", e.RunID, e.Message))
}

func (o *TelegramObserver) RenderDone(runID, path string, err error) {
	if err == nil {
		o.enqueue(fmt.Sprintf("✅ Run %s finished: %s", runID, path))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ Run %s failed: %v", runID, err)
	if o.errorsPath != "" {
		if lines, terr := logging.TailLastNLines(o.errorsPath, errorTailLines); terr == nil && len(lines) > 0 {
			b.WriteString("\n\nerrors.log:\n")
			b.WriteString(strings.Join(lines, "\n"))
		}
	}
	o.enqueue(b.String())
}

func (o *TelegramObserver) enqueue(text string) {
	msg := tgbotapi.NewMessage(o.chatID, text)
	select {
	case o.queue <- msg:
	default:
		o.log.Warnf("notify: telegram queue full, dropping message")
	}
}

// Close sends whatever is queued and stops the sender goroutine.
func (o *TelegramObserver) Close() {
	o.once.Do(func() { close(o.queue) })
	<-o.done
}
