package model

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindLinkNotFound
	KindUnsupportedPlatform
	KindAlreadyInProgress
	KindLinkExpired
	KindFetchTimeout
	KindFetchAuthRequired
	KindFetchUnavailable
	KindFetchNoFormats
	KindFetchGenericFailure
	KindArtifactMissing
	KindTranscodeFailure
	KindUploadFailure
	KindAllUploadsExhausted
	KindAIUnavailable
	KindTranscriptUnavailable
	KindCanceled
	KindDeliveryFailed
)

var kindNames = map[ErrorKind]string{
	KindUnknown:               "Unknown",
	KindLinkNotFound:          "LinkNotFound",
	KindUnsupportedPlatform:   "UnsupportedPlatform",
	KindAlreadyInProgress:     "AlreadyInProgress",
	KindLinkExpired:           "LinkExpired",
	KindFetchTimeout:          "FetchTimeout",
	KindFetchAuthRequired:     "FetchAuthRequired",
	KindFetchUnavailable:      "FetchUnavailable",
	KindFetchNoFormats:        "FetchNoFormats",
	KindFetchGenericFailure:   "FetchGenericFailure",
	KindArtifactMissing:       "ArtifactMissing",
	KindTranscodeFailure:      "TranscodeFailure",
	KindUploadFailure:         "UploadFailure",
	KindAllUploadsExhausted:   "AllUploadsExhausted",
	KindAIUnavailable:         "AIUnavailable",
	KindTranscriptUnavailable: "TranscriptUnavailable",
	KindCanceled:              "Canceled",
	KindDeliveryFailed:        "DeliveryFailed",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified failure. Host is set for upload failures.
type Error struct {
	Kind ErrorKind
	Host string
	Err  error
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Host != "" {
		msg += "(" + e.Host + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
