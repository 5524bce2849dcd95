package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dictation-tools/dictator/pkg/audio"
)

// translationCapableModels whitelists the OpenAI-compatible models that
// support the /audio/translations endpoint. Models not in this
// set fall back to /audio/transcriptions regardless of the caller's
// translate request.
var translationCapableModels = map[string]bool{
	"whisper-large-v3": true,
	"whisper-1": true,
}

// OpenAICompatibleSTT targets any OpenAI-compatible transcription API
// (OpenAI itself, Groq, and similar) by varying base URL and model,
// since such clients otherwise differ only in default URL/model.
type OpenAICompatibleSTT struct {
	apiKey string
	baseURL string
	model string
	sampleRate int
	name string
}

func NewOpenAICompatibleSTT(name, apiKey, baseURL, model string) *OpenAICompatibleSTT {
	return &OpenAICompatibleSTT{
		apiKey: apiKey,
		baseURL: baseURL,
		model: model,
		sampleRate: 16000,
		name: name,
	}
}

func (s *OpenAICompatibleSTT) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *OpenAICompatibleSTT) Name()string { return s.name }

// SupportsTranslation reports whether s.model is whitelisted for the
// /audio/translations endpoint.
func (s *OpenAICompatibleSTT) SupportsTranslation()bool {
	return translationCapableModels[s.model]
}

func (s *OpenAICompatibleSTT) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	return s.call(ctx, pcm, lang, false)
}

// Translate posts to /audio/translations when the configured model
// supports it, otherwise falls back to plain transcription.
func (s *OpenAICompatibleSTT) Translate(ctx context.Context, pcm []byte) (string, error) {
	return s.call(ctx, pcm, "", s.SupportsTranslation())
}

func (s *OpenAICompatibleSTT) call(ctx context.Context, pcm []byte, lang string, translate bool) (string, error) {
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if lang != "" && !translate {
		if err := writer.WriteField("language", lang); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := "/audio/transcriptions"
	if translate {
		endpoint = "/audio/translations"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s error: %s (status %d)", s.name, string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}
