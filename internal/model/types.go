package model

import "time"

// Choice is the format a user picked from the keyboard.
type Choice string

const (
	ChoiceVideo Choice = "video"
	ChoiceAudio Choice = "audio"
)

func ParseChoice(s string) (Choice, bool) {
	switch Choice(s) {
	case ChoiceVideo, ChoiceAudio:
		return Choice(s), true
	}
	return "", false
}

// DeliveryKind is derived per cycle and never stored.
type DeliveryKind string

const (
	DeliverInlineAudio  DeliveryKind = "inline-audio"
	DeliverInlineVideo  DeliveryKind = "inline-video"
	DeliverInlinePhoto  DeliveryKind = "inline-photo"
	DeliverUpload       DeliveryKind = "upload"
	DeliverSizeRejected DeliveryKind = "size-rejected"
)

func (k DeliveryKind) Inline() bool {
	return k == DeliverInlineAudio || k == DeliverInlineVideo || k == DeliverInlinePhoto
}

// Stage is reported to the user while a cycle runs.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageProbing     Stage = "probing"
	StageTranscoding Stage = "transcoding"
	StageDelivering  Stage = "delivering"
	StageUploading   Stage = "uploading"
)

// Session is the per-user transient state.
type Session struct {
	PendingURL string
	Busy       bool
	UpdatedAt  time.Time
}

// Artifact is a file produced by the fetcher or the transcoder.
type Artifact struct {
	Path string
	Size int64
	Ext  string
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

func (a Artifact) IsImage() bool {
	return imageExts[a.Ext]
}
