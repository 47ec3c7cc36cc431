// Package azure provides an Azure Speech-backed STT provider using the Fast
// Transcription REST API. It implements the stt.Provider interface.
//
// Fast Transcription is synchronous and faster than real time; the whole
// audio file is uploaded in one multipart request and the response carries
// word-level timestamps with diarization.
//
// API reference:
// https://learn.microsoft.com/azure/ai-services/speech-service/fast-transcription-create
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

const (
	apiVersion      = "2025-10-15"
	defaultLanguage = "he-IL"
	defaultSpeakers = 4
	defaultTimeout  = 10 * time.Minute
)

// contentTypes maps audio file extensions to their upload content type.
var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".aac":  "audio/aac",
	".webm": "audio/webm",
}

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 locale for recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithMaxSpeakers sets the default diarization speaker-count hint.
func WithMaxSpeakers(n int) Option {
	return func(p *Provider) {
		p.maxSpeakers = n
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithEndpoint overrides the service base URL, mainly for tests. The default
// is derived from the region.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by Azure Fast Transcription.
type Provider struct {
	key         string
	endpoint    string
	language    string
	maxSpeakers int
	client      *http.Client
}

// New creates a new Azure Provider. key and region must be non-empty.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure: key must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure: region must not be empty")
	}
	p := &Provider{
		key:         key,
		endpoint:    fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region),
		language:    defaultLanguage,
		maxSpeakers: defaultSpeakers,
		client:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// definition is the JSON recognition definition sent as a form field.
type definition struct {
	Locales     []string    `json:"locales"`
	Diarization diarization `json:"diarization"`
}

type diarization struct {
	Enabled     bool `json:"enabled"`
	MaxSpeakers int  `json:"maxSpeakers"`
}

// apiResponse mirrors the Fast Transcription response fields we consume.
type apiResponse struct {
	DurationMilliseconds int `json:"durationMilliseconds"`
	Phrases              []struct {
		Text  string `json:"text"`
		Words []struct {
			Text                 string `json:"text"`
			OffsetMilliseconds   int    `json:"offsetMilliseconds"`
			DurationMilliseconds int    `json:"durationMilliseconds"`
		} `json:"words"`
	} `json:"phrases"`
	CombinedPhrases []struct {
		Text string `json:"text"`
	} `json:"combinedPhrases"`
}

// Transcribe uploads the audio and parses the word-level timestamps.
//
// Throttling (429) and server errors are returned to the caller as regular
// errors with the status and response excerpt; there is no internal retry.
func (p *Provider) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	language := req.Language
	if language == "" {
		language = p.language
	}
	maxSpeakers := req.MaxSpeakers
	if maxSpeakers == 0 {
		maxSpeakers = p.maxSpeakers
	}

	body, contentType, err := buildMultipartBody(req.Audio, req.Filename, definition{
		Locales: []string{language},
		Diarization: diarization{
			Enabled:     true,
			MaxSpeakers: maxSpeakers,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("azure: build request body: %w", err)
	}

	url := fmt.Sprintf("%s/speechtotext/transcriptions:transcribe?api-version=%s",
		p.endpoint, apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("azure: transcribe: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("azure: decode response: %w", err)
	}

	return buildResult(parsed), nil
}

// buildMultipartBody assembles the two-part form: the audio file and the JSON
// definition. Returns the encoded body and its Content-Type header value.
func buildMultipartBody(audio io.Reader, filename string, def definition) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	audioType := contentTypes[strings.ToLower(filepath.Ext(filename))]
	if audioType == "" {
		audioType = "application/octet-stream"
	}
	if filename == "" {
		filename = "audio"
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="audio"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", audioType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", err
	}

	defJSON, err := json.Marshal(def)
	if err != nil {
		return nil, "", err
	}
	defHeader := textproto.MIMEHeader{}
	defHeader.Set("Content-Disposition", `form-data; name="definition"`)
	defHeader.Set("Content-Type", "application/json")
	defPart, err := writer.CreatePart(defHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := defPart.Write(defJSON); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// buildResult flattens the phrase/word structure into the provider-neutral
// result. The combined text is preferred; phrase texts are the fallback. When
// the response omits the total duration it is derived from the last word.
func buildResult(parsed apiResponse) *stt.Result {
	result := &stt.Result{
		DurationMS: parsed.DurationMilliseconds,
	}

	var phraseTexts []string
	for _, phrase := range parsed.Phrases {
		phraseTexts = append(phraseTexts, phrase.Text)
		for _, w := range phrase.Words {
			result.Words = append(result.Words, stt.Word{
				Text:       w.Text,
				OffsetMS:   w.OffsetMilliseconds,
				DurationMS: w.DurationMilliseconds,
			})
		}
	}

	var combined strings.Builder
	for _, cp := range parsed.CombinedPhrases {
		combined.WriteString(cp.Text)
		combined.WriteString(" ")
	}
	result.Text = strings.TrimSpace(combined.String())
	if result.Text == "" {
		result.Text = strings.Join(phraseTexts, " ")
	}

	if result.DurationMS == 0 && len(result.Words) > 0 {
		result.DurationMS = result.Words[len(result.Words)-1].End()
	}

	return result
}
