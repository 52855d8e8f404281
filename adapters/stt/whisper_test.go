package stt

import (
	"testing"
)

func TestParseWhisperOutput(t *testing.T) {
	data := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"offsets": {"from": 0, "to": 2500}, "text": " Hello there,"},
			{"offsets": {"from": 2500, "to": 4000}, "text": " how are you?"}
		]
	}`)

	tr, err := parseWhisperOutput(data)
	if err != nil {
		t.Fatalf("parseWhisperOutput failed: %v", err)
	}
	if tr.Text != "Hello there, how are you?" {
		t.Errorf("unexpected text: %q", tr.Text)
	}
	if tr.Language != "en" {
		t.Errorf("expected language en, got %q", tr.Language)
	}
	if tr.Duration != 4.0 {
		t.Errorf("expected duration 4.0, got %f", tr.Duration)
	}
}

func TestParseWhisperOutputSilence(t *testing.T) {
	// Silence-only audio legitimately produces no segments.
	tr, err := parseWhisperOutput([]byte(`{"result": {"language": "en"}, "transcription": []}`))
	if err != nil {
		t.Fatalf("parseWhisperOutput failed: %v", err)
	}
	if tr.Text != "" {
		t.Errorf("expected empty transcript, got %q", tr.Text)
	}
}

func TestParseWhisperOutputMalformed(t *testing.T) {
	if _, err := parseWhisperOutput([]byte("not json")); err == nil {
		t.Error("expected error for malformed engine output")
	}
}
