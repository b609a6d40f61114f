package bot

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

const (
	// Heap above 600 MB is a warning; ffmpeg and yt-dlp run out of process,
	// so the bot itself should stay small.
	memWarnThresholdBytes = 600 * 1024 * 1024
	// Above 1.2 GB the process shuts itself down.
	memCritThresholdBytes = 1200 * 1024 * 1024
	memCheckInterval      = 30 * time.Second
	// Every running cycle holds a few goroutines; thousands mean a leak.
	goroutineWarnThreshold = 500
	goroutineCritThreshold = 1000
	memWarnCooldown        = 10 * time.Minute
)

type memSample struct {
	heap       uint64
	sys        uint64
	goroutines int
	busy       int
}

type memVerdict int

const (
	memOK memVerdict = iota
	memWarn
	memCritical
)

func judgeMemory(s memSample) memVerdict {
	switch {
	case s.goroutines >= goroutineCritThreshold, s.heap >= memCritThresholdBytes:
		return memCritical
	case s.goroutines >= goroutineWarnThreshold, s.heap > memWarnThresholdBytes:
		return memWarn
	}
	return memOK
}

// runMemoryWatcher samples the heap and goroutine count. Warnings go to the
// admin chat; a critical reading stops the process through cancelFunc.
func (b *TelegramBot) runMemoryWatcher(ctx context.Context) {
	ticker := time.NewTicker(memCheckInterval)
	defer ticker.Stop()

	var lastWarnAt time.Time
	b.log.Infof("memwatch: started (warn=%dMB, crit=%dMB, goroutines warn=%d crit=%d)",
		memWarnThresholdBytes/(1024*1024), memCritThresholdBytes/(1024*1024),
		goroutineWarnThreshold, goroutineCritThreshold)

	for {
		select {
		case <-ctx.Done():
			b.log.Infof("memwatch: stopped")
			return
		case <-ticker.C:
			b.checkMemory(&lastWarnAt)
		}
	}
}

func (b *TelegramBot) checkMemory(lastWarnAt *time.Time) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := memSample{
		heap:       ms.HeapAlloc,
		sys:        ms.Sys,
		goroutines: runtime.NumGoroutine(),
		busy:       b.ctl.Store().Stats().Busy,
	}

	switch judgeMemory(s) {
	case memCritical:
		b.log.Errorf("memwatch: CRITICAL heap=%dMB goroutines=%d busy=%d", s.heap>>20, s.goroutines, s.busy)
		b.sendMemAlert("🚨 Критическое потребление ресурсов, бот останавливается!\n"+formatMemSample(s), true)
	case memWarn:
		if time.Since(*lastWarnAt) < memWarnCooldown {
			return
		}
		b.log.Warnf("memwatch: WARNING heap=%dMB goroutines=%d busy=%d", s.heap>>20, s.goroutines, s.busy)
		b.sendMemAlert("⚠️ Высокое потребление ресурсов.\n"+formatMemSample(s), false)
		runtime.GC()
		*lastWarnAt = time.Now()
	}
}

func formatMemSample(s memSample) string {
	return fmt.Sprintf("Heap: %d MB (порог %d MB)\nSys: %d MB\nGoroutines: %d (порог %d)\nАктивных загрузок: %d",
		s.heap>>20, memWarnThresholdBytes>>20, s.sys>>20, s.goroutines, goroutineWarnThreshold, s.busy)
}

// sendMemAlert notifies ADMIN_CHAT_ID and, on emergency, cancels the root
// context after giving the message a moment to leave.
func (b *TelegramBot) sendMemAlert(msg string, emergency bool) {
	if b.adminChatID != 0 {
		b.replyText(b.adminChatID, msg)
		if emergency {
			time.Sleep(3 * time.Second)
		}
	} else {
		b.log.Warnf("memwatch: ADMIN_CHAT_ID not set, alert not delivered: %s", msg)
	}

	if emergency && b.cancelFunc != nil {
		b.log.Errorf("memwatch: calling cancelFunc to initiate emergency shutdown")
		b.cancelFunc()
	}
}
