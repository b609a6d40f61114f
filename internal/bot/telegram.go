package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"media-relay-bot/internal"
	"media-relay-bot/internal/ai"
	"media-relay-bot/internal/lifecycle"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
)

type TelegramBot struct {
	tg         *tgbotapi.BotAPI
	ctl        *lifecycle.Controller
	assistant  *ai.Assistant
	hosts      []string
	log        *logging.Logger
	errorsPath string

	adminChatID int64
	startedAt   time.Time

	// cancelFunc stops the whole process (memory watcher emergency).
	cancelFunc context.CancelFunc
}

func NewTelegramBot(cfg internal.Config, ctl *lifecycle.Controller, assistant *ai.Assistant, hosts []string, log *logging.Logger, cancel context.CancelFunc) (*TelegramBot, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	endpoint := tgbotapi.APIEndpoint
	if cfg.TelegramEndpoint != "" {
		endpoint = strings.TrimRight(cfg.TelegramEndpoint, "/") + "/bot%s/%s"
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramToken, endpoint)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &TelegramBot{
		tg:          api,
		ctl:         ctl,
		assistant:   assistant,
		hosts:       hosts,
		log:         log,
		errorsPath:  cfg.ErrorsLog,
		adminChatID: cfg.AdminChatID,
		startedAt:   time.Now(),
		cancelFunc:  cancel,
	}, nil
}

func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started as @%s (upload hosts: %v)", b.tg.Self.UserName, b.hosts)

	go b.runMemoryWatcher(ctx)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case upd := <-updates:
			switch {
			case upd.CallbackQuery != nil:
				b.handleCallback(ctx, upd.CallbackQuery)
			case upd.Message == nil || upd.Message.From == nil:
			case upd.Message.IsCommand():
				b.handleCommand(ctx, upd.Message)
			default:
				b.handleMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	b.log.Infof("command /%s from user %d", msg.Command(), userID)

	switch msg.Command() {
	case "start":
		b.replyText(chatID, startText)
	case "help":
		b.replyText(chatID, helpText)
	case "ask":
		b.cmdAsk(ctx, chatID, msg.CommandArguments())
	case "summary":
		b.cmdSummary(ctx, chatID, msg.CommandArguments())
	case "cancel":
		b.cmdCancel(chatID, userID)
	case "status":
		b.cmdStatus(chatID)
	case "errors":
		b.cmdErrors(chatID, msg.CommandArguments())
	default:
		b.replyText(chatID, "Неизвестная команда. Используйте /help")
	}
}

// handleMessage is intake: remember the link and offer the format keyboard.
func (b *TelegramBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text, ents := messageText(msg)
	if text == "" {
		return
	}

	sub, err := b.ctl.Submit(userID, text, entityLinks(text, ents))
	if err != nil {
		b.replyText(chatID, errorText(err, ""))
		return
	}

	if sub.AutoSelect != "" {
		b.log.Infof("handleMessage: %s auto-selects %s", sub.Profile.Name, sub.AutoSelect)
		go b.runCycle(ctx, chatID, userID, sub.AutoSelect)
		return
	}

	m := tgbotapi.NewMessage(chatID, chooseText)
	m.ReplyToMessageID = msg.MessageID
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnVideo, cbVideo),
			tgbotapi.NewInlineKeyboardButtonData(btnAudio, cbAudio),
		),
	)
	if _, err := b.tg.Send(m); err != nil {
		b.log.Errorf("send keyboard: %v", err)
	}
}

func (b *TelegramBot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		_, _ = b.tg.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	choice, ok := choiceFromCallback(cb.Data)
	if !ok {
		_, _ = b.tg.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	userID := cb.From.ID
	if b.ctl.Store().Busy(userID) {
		_, _ = b.tg.Request(tgbotapi.NewCallbackWithAlert(cb.ID, errorText(model.Errorf(model.KindAlreadyInProgress, "busy"), "")))
		return
	}
	_, _ = b.tg.Request(tgbotapi.NewCallback(cb.ID, ""))

	go b.runCycle(ctx, cb.Message.Chat.ID, userID, choice)
}

// runCycle drives one Select and turns its result into chat messages.
func (b *TelegramBot) runCycle(ctx context.Context, chatID, userID int64, choice model.Choice) {
	b.log.Infof("runCycle: START user=%d choice=%s", userID, choice)
	d := &chatDeliverer{chatID: chatID, choice: choice, send: b.send, log: b.log}

	out, err := b.ctl.Select(ctx, userID, choice, d)
	if err != nil {
		src := ""
		if out != nil {
			src = out.SourceURL
		}
		if model.IsKind(err, model.KindAlreadyInProgress) || model.IsKind(err, model.KindLinkExpired) {
			b.replyText(chatID, errorText(err, src))
			return
		}
		d.finish(errorText(err, src))
		return
	}

	d.finish("")
	b.log.Infof("runCycle: DONE user=%d %s in %s", userID, out.Kind, out.Elapsed.Round(time.Millisecond))
}

func (b *TelegramBot) cmdAsk(ctx context.Context, chatID int64, query string) {
	if strings.TrimSpace(query) == "" {
		b.replyText(chatID, askUsage)
		return
	}
	statusID := b.replyText(chatID, thinkingText)
	go func() {
		answer, err := b.assistant.Ask(ctx, query)
		if err != nil {
			b.log.Errorf("ask: %v", err)
			answer = errorText(err, "")
		}
		b.replaceStatus(chatID, statusID, answer)
	}()
}

func (b *TelegramBot) cmdSummary(ctx context.Context, chatID int64, link string) {
	link = strings.TrimSpace(link)
	if link == "" {
		b.replyText(chatID, summaryUsage)
		return
	}
	statusID := b.replyText(chatID, "📝 Читаю субтитры…")
	go func() {
		summary, err := b.assistant.Summarize(ctx, link)
		switch {
		case model.IsKind(err, model.KindLinkNotFound):
			summary = summaryUsage
		case err != nil:
			b.log.Errorf("summary %s: %v", link, err)
			summary = errorText(err, "")
		}
		b.replaceStatus(chatID, statusID, summary)
	}()
}

func (b *TelegramBot) cmdCancel(chatID, userID int64) {
	res := b.ctl.Cancel(userID)
	switch {
	case res.Interrupted:
		b.replyText(chatID, "🛑 Останавливаю текущую загрузку.")
	case res.HadURL || res.Purged > 0:
		b.replyText(chatID, "🧹 Ссылка забыта, временные файлы удалены.")
	default:
		b.replyText(chatID, "Нечего отменять.")
	}
}

func (b *TelegramBot) cmdStatus(chatID int64) {
	st := b.ctl.Store().Stats()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	hosts := "нет"
	if len(b.hosts) > 0 {
		names := make([]string, len(b.hosts))
		for i, h := range b.hosts {
			names[i] = hostName(h)
		}
		hosts = strings.Join(names, " → ")
	}
	b.replyText(chatID, fmt.Sprintf(
		"📊 Статус:\n\n⏱ Аптайм: %s\n👥 Сессий: %d (ссылок ждут выбора: %d)\n⏬ Загрузок сейчас: %d\n☁️ Облака: %s\n🧠 Heap: %d MB, goroutines: %d",
		time.Since(b.startedAt).Round(time.Second), st.Sessions, st.Pending, st.Busy, hosts,
		ms.HeapAlloc/(1024*1024), runtime.NumGoroutine(),
	))
}

func (b *TelegramBot) cmdErrors(chatID int64, args string) {
	if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 {
		lines, err := TailLastNLines(b.errorsPath, n)
		if err != nil {
			b.log.Errorf("tail errors.log: %v", err)
			b.replyText(chatID, "❌ Не удалось прочитать errors.log")
			return
		}
		b.replyText(chatID, formatTail(lines, ai.DefaultLimit))
		return
	}

	f, err := os.Open(b.errorsPath)
	if err != nil {
		b.log.Errorf("open errors.log: %v", err)
		b.replyText(chatID, "❌ Не удалось открыть errors.log")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		b.log.Errorf("stat errors.log: %v", err)
		b.replyText(chatID, "❌ Ошибка чтения errors.log")
		return
	}
	if info.Size() == 0 {
		b.replyText(chatID, "📋 errors.log пуст")
		return
	}

	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: "errors.log", Reader: f})
	msg.Caption = fmt.Sprintf("📋 errors.log (%d байт)", info.Size())
	if _, err := b.tg.Send(msg); err != nil {
		b.log.Errorf("send errors.log: %v", err)
		b.replyText(chatID, "❌ Ошибка отправки файла")
	}
}

// send routes calls whose result is not a Message through Request.
func (b *TelegramBot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch c.(type) {
	case tgbotapi.DeleteMessageConfig, tgbotapi.CallbackConfig:
		_, err := b.tg.Request(c)
		return tgbotapi.Message{}, err
	}
	return b.tg.Send(c)
}

func (b *TelegramBot) replaceStatus(chatID int64, statusID int, text string) {
	if statusID != 0 {
		if err := b.editMessage(chatID, statusID, text); err == nil {
			return
		}
	}
	b.replyText(chatID, text)
}

func (b *TelegramBot) replyText(chatID int64, text string) int {
	m := tgbotapi.NewMessage(chatID, text)
	sent, err := b.tg.Send(m)
	if err != nil {
		b.log.Warnf("reply to %d: %v", chatID, err)
	}
	return sent.MessageID
}

func (b *TelegramBot) editMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := b.tg.Send(edit)
	return err
}
