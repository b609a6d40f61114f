package bot

import (
	"fmt"

	"media-relay-bot/internal/model"
)

const (
	helpText = `Пришлите ссылку на видео, и я скачаю его для вас.

Команды:
/start — приветствие
/help — помощь
/ask <вопрос> — спросить ИИ
/summary <ссылка на YouTube> — краткий пересказ видео по субтитрам
/cancel — отменить текущую загрузку и забыть ссылку
/status — состояние бота
/errors [N] — последние N строк errors.log или весь файл`

	startText    = "👋 Привет! Пришлите ссылку на видео (YouTube, TikTok, Instagram, X, VK, Reddit, SoundCloud, Pinterest), а я пришлю файл. /help — список команд."
	chooseText   = "Что скачать?"
	askUsage     = "✍️ Напишите вопрос после команды, например:\n/ask Почему небо голубое?"
	summaryUsage = "✍️ Пришлите ссылку на YouTube после команды, например:\n/summary https://youtu.be/dQw4w9WgXcQ"
	thinkingText = "🤔"
	downgraded   = "ℹ️ В ссылке нет видеодорожки, отправляю аудио."

	btnVideo = "🎬 Видео"
	btnAudio = "🎵 Аудио"

	cbVideo = "get_video"
	cbAudio = "get_audio"
)

// choiceFromCallback maps keyboard payloads to choices.
func choiceFromCallback(data string) (model.Choice, bool) {
	switch data {
	case cbVideo:
		return model.ChoiceVideo, true
	case cbAudio:
		return model.ChoiceAudio, true
	}
	return "", false
}

func stageText(stage model.Stage, choice model.Choice) string {
	switch stage {
	case model.StageFetching:
		if choice == model.ChoiceAudio {
			return "⏬ Скачиваю аудио…"
		}
		return "⏬ Скачиваю видео…"
	case model.StageProbing:
		return "🔍 Проверяю файл…"
	case model.StageTranscoding:
		return "⚙️ Конвертирую…"
	case model.StageDelivering:
		return "📤 Отправляю…"
	case model.StageUploading:
		return "☁️ Файл больше лимита Telegram, загружаю в облако…"
	}
	return "⏳ Работаю…"
}

var hostNames = map[string]string{
	"gofile": "GoFile",
	"gdrive": "Google Drive",
	"s3":     "облако",
}

func hostName(platform string) string {
	if n, ok := hostNames[platform]; ok {
		return n
	}
	return platform
}

func linkText(host, link string) string {
	return fmt.Sprintf("✅ Файл слишком большой для Telegram, загрузил на %s:\n%s", hostName(host), link)
}

// errorText turns any failure into the message the user sees. sourceURL is
// offered as a manual fallback when no host took the file.
func errorText(err error, sourceURL string) string {
	switch model.KindOf(err) {
	case model.KindLinkNotFound:
		return "🔗 Не нашёл ссылку в сообщении. Пришлите ссылку на видео."
	case model.KindUnsupportedPlatform:
		return "🚫 Этот сайт не поддерживается. Подходят YouTube, TikTok, Instagram, X, VK, Reddit, SoundCloud и Pinterest."
	case model.KindAlreadyInProgress:
		return "⏳ Предыдущая загрузка ещё идёт, дождитесь её окончания."
	case model.KindLinkExpired:
		return "⌛ Ссылка потерялась, отправьте её ещё раз."
	case model.KindFetchTimeout:
		return "⏱ Загрузка заняла слишком много времени и была остановлена."
	case model.KindFetchAuthRequired:
		return "🔒 Видео приватное или требует входа в аккаунт."
	case model.KindFetchUnavailable:
		return "❌ Видео недоступно или удалено."
	case model.KindFetchNoFormats:
		return "🎞 Не нашёл подходящего формата для скачивания."
	case model.KindFetchGenericFailure:
		return "❌ Не удалось скачать. Попробуйте позже."
	case model.KindArtifactMissing:
		return "❓ Загрузка завершилась, но файл не найден."
	case model.KindTranscodeFailure:
		return "⚙️ Не удалось обработать видео."
	case model.KindUploadFailure, model.KindAllUploadsExhausted:
		if sourceURL == "" {
			return "📦 Файл слишком большой, и загрузить его в облако не удалось."
		}
		return "📦 Файл слишком большой, и загрузить его в облако не удалось.\nСкачайте напрямую: " + sourceURL
	case model.KindCanceled:
		return "🛑 Загрузка отменена."
	case model.KindDeliveryFailed:
		return "❌ Telegram не принял файл."
	case model.KindAIUnavailable:
		return "🤖 ИИ сейчас недоступен, попробуйте позже."
	case model.KindTranscriptUnavailable:
		return "📭 У этого видео нет субтитров, пересказ невозможен."
	}
	return "❌ Что-то пошло не так, попробуйте ещё раз."
}
