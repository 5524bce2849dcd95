package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dictation-tools/dictator/pkg/logging"
)

const (
	remoteBatchPollMinInterval = 500 * time.Millisecond
	remoteBatchPollMaxInterval = 5 * time.Second
	remoteBatchDeleteRetries = 3
	remoteBatchDeleteSpacing = time.Second
)

// RemoteBatchOptions mirrors the create-job request fields
// names as optional.
type RemoteBatchOptions struct {
	LanguageHints []string
	Context json.RawMessage
	EnableSpeakerDiarization bool
	EnableLanguageID bool
}

// RemoteBatchSTT is a generic "upload, create job, poll, fetch,
// delete" REST client for asynchronous batch transcription, modeled
// on the documented wire shape (POST /v1/files, POST
// /v1/transcriptions, GET.../transcript).
type RemoteBatchSTT struct {
	apiKey string
	model string
	baseURL string
	client *http.Client
	log logging.Logger
}

func NewRemoteBatchSTT(apiKey, model, baseURL string, log logging.Logger) *RemoteBatchSTT {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &RemoteBatchSTT{
		apiKey: apiKey,
		model: model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: http.DefaultClient,
		log: log,
	}
}

func (s *RemoteBatchSTT) Name()string { return "remote-batch-stt" }

func (s *RemoteBatchSTT) Transcribe(ctx context.Context, pcmWAV []byte, lang string) (string, error) {
	fileID, err := s.uploadFile(ctx, pcmWAV)
	if err != nil {
		return "", fmt.Errorf("remote batch stt: upload failed: %w", err)
	}
	defer s.deleteFileBestEffort(fileID)

	opts := RemoteBatchOptions{}
	if hint, _ := canonicalizeLanguageCode(lang); hint != "" && IsSupportedLanguage(hint) {
		opts.LanguageHints = []string{hint}
	}

	jobID, err := s.createJob(ctx, fileID, opts)
	if err != nil {
		return "", fmt.Errorf("remote batch stt: create job failed: %w", err)
	}

	if err := s.pollUntilComplete(ctx, jobID); err != nil {
		return "", err
	}

	return s.fetchTranscript(ctx, jobID)
}

func (s *RemoteBatchSTT) uploadFile(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return result.ID, nil
}

func (s *RemoteBatchSTT) createJob(ctx context.Context, fileID string, opts RemoteBatchOptions) (string, error) {
	payload := map[string]interface{}{
		"file_id": fileID,
		"model": s.model,
	}
	if len(opts.LanguageHints) > 0 {
		payload["language_hints"] = opts.LanguageHints
	}
	if len(opts.Context) > 0 {
		payload["context"] = opts.Context
	}
	if opts.EnableSpeakerDiarization {
		payload["enable_speaker_diarization"] = true
	}
	if opts.EnableLanguageID {
		payload["enable_language_identification"] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode create-job response: %w", err)
	}
	return result.ID, nil
}

// pollUntilComplete polls with exponential backoff from 500ms to a 5s
// cap until status is "completed" or "error".
func (s *RemoteBatchSTT) pollUntilComplete(ctx context.Context, jobID string) error {
	interval := remoteBatchPollMinInterval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		status, err := s.fetchStatus(ctx, jobID)
		if err != nil {
			return err
		}
		switch status {
		case "completed":
			return nil
		case "error":
			return fmt.Errorf("remote batch stt: job %s failed", jobID)
		}

		interval *= 2
		if interval > remoteBatchPollMaxInterval {
			interval = remoteBatchPollMaxInterval
		}
	}
}

func (s *RemoteBatchSTT) fetchStatus(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/transcriptions/"+jobID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	return result.Status, nil
}

func (s *RemoteBatchSTT) fetchTranscript(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/transcriptions/"+jobID+"/transcript", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}
	return result.Text, nil
}

// deleteFileBestEffort always attempts cleanup, up to 3 retries spaced
// 1s apart, and never surfaces a delete failure to the caller (:
// "always delete... afterward").
func (s *RemoteBatchSTT) deleteFileBestEffort(fileID string) {
	if fileID == "" {
		return
	}
	for attempt := 0; attempt < remoteBatchDeleteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(remoteBatchDeleteSpacing)
		}
		req, err := http.NewRequest(http.MethodDelete, s.baseURL+"/v1/files/"+fileID, nil)
		if err != nil {
			continue
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Warn("remote batch stt: delete attempt failed", "file_id", fileID, "attempt", attempt+1, "err", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 300 {
			return
		}
	}
	s.log.Warn("remote batch stt: failed to delete uploaded file after retries", "file_id", fileID)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
