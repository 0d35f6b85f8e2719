package bot

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

const (
	memCheckInterval = 30 * time.Second
	memWarnEvery     = 10 * time.Minute
	mib              = 1024 * 1024
)

type memLevel int

const (
	memOK memLevel = iota
	memHigh
	memLeak
)

// memLimits are the bot process limits. ffmpeg and the TTS engine run out of
// process, so a bot that grows past these is leaking renders or updates.
type memLimits struct {
	warnHeap, critHeap             uint64
	warnGoroutines, critGoroutines int
}

var defaultMemLimits = memLimits{
	warnHeap:       600 * mib,
	critHeap:       1200 * mib,
	warnGoroutines: 500,
	critGoroutines: 1000,
}

type memSample struct {
	heap       uint64
	sys        uint64
	goroutines int
}

func readMemSample() memSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return memSample{heap: ms.HeapAlloc, sys: ms.Sys, goroutines: runtime.NumGoroutine()}
}

// classify returns the level of s and a short reason for the alert title.
func (l memLimits) classify(s memSample) (memLevel, string) {
	switch {
	case s.goroutines >= l.critGoroutines:
		return memLeak, fmt.Sprintf("Goroutine leak (%d, limit %d)", s.goroutines, l.critGoroutines)
	case s.heap >= l.critHeap:
		return memLeak, fmt.Sprintf("Memory leak (%d MB, limit %d MB)", s.heap/mib, l.critHeap/mib)
	case s.heap > l.warnHeap || s.goroutines >= l.warnGoroutines:
		return memHigh, "High resource usage"
	}
	return memOK, ""
}

// runMemoryWatcher samples the process every memCheckInterval until ctx is
// done or a leak forces a shutdown.
func (b *TelegramBot) runMemoryWatcher(ctx context.Context) {
	ticker := time.NewTicker(memCheckInterval)
	defer ticker.Stop()

	var lastWarnAt time.Time
	b.log.Infof("memwatch: started (heap warn=%dMB crit=%dMB, goroutines warn=%d crit=%d)",
		b.limits.warnHeap/mib, b.limits.critHeap/mib, b.limits.warnGoroutines, b.limits.critGoroutines)

	for {
		select {
		case <-ctx.Done():
			b.log.Infof("memwatch: stopped")
			return
		case now := <-ticker.C:
			if b.checkMemory(readMemSample(), now, &lastWarnAt) {
				return
			}
		}
	}
}

// checkMemory alerts the admin chat and reports whether it started an
// emergency shutdown. High usage alerts are rate limited by memWarnEvery.
func (b *TelegramBot) checkMemory(s memSample, now time.Time, lastWarnAt *time.Time) bool {
	level, reason := b.limits.classify(s)
	if level == memOK || (level == memHigh && now.Sub(*lastWarnAt) <= memWarnEvery) {
		return false
	}

	b.mu.Lock()
	rendering := b.busy
	if level == memLeak {
		b.lastErr = "memwatch: " + reason
	}
	b.mu.Unlock()

	msg := fmt.Sprintf("%s\nHeap: %d MB / Sys: %d MB\nGoroutines: %d", reason, s.heap/mib, s.sys/mib, s.goroutines)
	if level == memHigh {
		b.log.Warnf("memwatch: %s heap=%dMB goroutines=%d", reason, s.heap/mib, s.goroutines)
		b.sendMemAlert("⚠️ "+msg, false)
		runtime.GC()
		*lastWarnAt = now
		return false
	}

	if rendering {
		msg += "\nThe running render will be cancelled."
	}
	b.log.Errorf("memwatch: CRITICAL %s heap=%dMB goroutines=%d rendering=%v", reason, s.heap/mib, s.goroutines, rendering)
	b.sendMemAlert("🚨 Shutting down! "+msg, true)
	return true
}

func (b *TelegramBot) sendMemAlert(msg string, emergency bool) {
	if b.adminChat != 0 {
		b.replyText(b.adminChat, msg)
	} else {
		b.log.Warnf("memwatch: no admin chat, alert not delivered: %s", msg)
	}

	if emergency && b.cancelFunc != nil {
		b.cancelFunc()
	}
}
