package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"media-relay-bot/internal/lifecycle"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
)

type sendFunc func(c tgbotapi.Chattable) (tgbotapi.Message, error)

// chatDeliverer reports cycle progress by editing one status message and
// sends the result into the chat.
type chatDeliverer struct {
	chatID int64
	choice model.Choice
	send   sendFunc
	log    *logging.Logger

	mu       sync.Mutex
	statusID int
	last     model.Stage
}

func (d *chatDeliverer) Stage(stage model.Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stage == d.last {
		return
	}
	d.last = stage
	text := stageText(stage, d.choice)

	if d.statusID == 0 {
		sent, err := d.send(tgbotapi.NewMessage(d.chatID, text))
		if err != nil {
			d.log.Warnf("status message: %v", err)
			return
		}
		d.statusID = sent.MessageID
		return
	}
	if _, err := d.send(tgbotapi.NewEditMessageText(d.chatID, d.statusID, text)); err != nil {
		d.log.Warnf("edit status: %v", err)
	}
}

func (d *chatDeliverer) Deliver(ctx context.Context, del lifecycle.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var c tgbotapi.Chattable
	switch del.Kind {
	case model.DeliverInlineVideo:
		v := tgbotapi.NewVideo(d.chatID, tgbotapi.FilePath(del.Path))
		v.SupportsStreaming = true
		c = v
	case model.DeliverInlineAudio:
		a := tgbotapi.NewAudio(d.chatID, tgbotapi.FilePath(del.Path))
		if del.Downgraded {
			a.Caption = downgraded
		}
		c = a
	case model.DeliverInlinePhoto:
		c = tgbotapi.NewPhoto(d.chatID, tgbotapi.FilePath(del.Path))
	case model.DeliverUpload:
		text := linkText(del.Host, del.Link)
		if del.Downgraded {
			text = downgraded + "\n" + text
		}
		m := tgbotapi.NewMessage(d.chatID, text)
		m.DisableWebPagePreview = true
		c = m
	default:
		return errors.Errorf("cannot deliver %s", del.Kind)
	}

	if _, err := d.send(c); err != nil {
		return errors.Wrapf(err, "send %s", del.Kind)
	}
	return nil
}

// finish replaces the status message with text, or drops it when text is
// empty.
func (d *chatDeliverer) finish(text string) {
	d.mu.Lock()
	id := d.statusID
	d.mu.Unlock()

	switch {
	case id != 0 && text == "":
		_, _ = d.send(tgbotapi.NewDeleteMessage(d.chatID, id))
	case id != 0:
		if _, err := d.send(tgbotapi.NewEditMessageText(d.chatID, id, text)); err == nil {
			return
		}
		fallthrough
	case text != "":
		_, _ = d.send(tgbotapi.NewMessage(d.chatID, text))
	}
}
