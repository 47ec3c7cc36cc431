// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed controlled transcription results and inspect the
// requests the caller made.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: &stt.Result{Words: []stt.Word{{Text: "שלום", OffsetMS: 0, DurationMS: 300}}},
//	}
//	result, _ := p.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.TranscribeRequest
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe. If nil, an empty Result is returned.
	Result *stt.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Result, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &stt.Result{}, nil
}
