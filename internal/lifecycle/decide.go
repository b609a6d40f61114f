package lifecycle

import "media-relay-bot/internal/model"

const MB = int64(1000 * 1000)

// Limits are the size ceilings a cycle is judged against, in bytes.
type Limits struct {
	Inline         int64 // largest file sent through the chat API
	Audio          int64 // largest audio sent inline; 0 disables the check
	CompressTarget int64 // re-encode oversized video to this size; 0 disables
}

func DefaultLimits() Limits {
	return Limits{Inline: 2000 * MB, Audio: 2000 * MB}
}

// Decide picks the delivery path for an artifact. Audio goes inline unless it
// exceeds the audio ceiling; anything else goes inline when it fits, as a
// photo if it is an image. Oversized files are uploaded, or rejected when no
// upload host is configured.
func Decide(choice model.Choice, art model.Artifact, lim Limits, canUpload bool) model.DeliveryKind {
	oversized := func() model.DeliveryKind {
		if canUpload {
			return model.DeliverUpload
		}
		return model.DeliverSizeRejected
	}

	if choice == model.ChoiceAudio && !art.IsImage() {
		if lim.Audio > 0 && art.Size > lim.Audio {
			return oversized()
		}
		return model.DeliverInlineAudio
	}
	if art.Size <= lim.Inline {
		if art.IsImage() {
			return model.DeliverInlinePhoto
		}
		return model.DeliverInlineVideo
	}
	return oversized()
}
