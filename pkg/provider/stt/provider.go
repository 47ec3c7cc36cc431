// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., Azure Fast
// Transcription) and exposes a uniform interface: audio in, word-level
// timestamps out. Providers run faster than real time; a 20-minute recording
// typically completes in a couple of minutes.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"io"
)

// TranscribeRequest describes one batch transcription call.
type TranscribeRequest struct {
	// Audio is the audio content. The provider reads it fully; the caller
	// retains ownership and closes it if applicable.
	Audio io.Reader

	// Filename is the original file name, used by providers to derive the
	// upload content type from the extension. May be empty.
	Filename string

	// Language is the BCP-47 locale for recognition (e.g. "he-IL").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// MaxSpeakers is a diarization hint for the maximum number of distinct
	// speakers. Zero means the provider default.
	MaxSpeakers int
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe uploads the audio and blocks until recognition completes.
	//
	// Returns an error if the provider cannot complete the request
	// (authentication failure, unsupported audio, or ctx cancelled). The
	// call is not retried internally; callers decide their own retry
	// policy around throttling responses.
	Transcribe(ctx context.Context, req TranscribeRequest) (*Result, error)
}
