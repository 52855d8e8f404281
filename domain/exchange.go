package domain

// Transcript is the immutable result of one speech-to-text pass.
type Transcript struct {
	// Text may legitimately be empty for silence-only audio. Empty text is
	// not an error; transcription failures surface as errors instead.
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// Voice is one entry of the synthesizer's voice catalog.
type Voice struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SynthesizedAudio is the output of one text-to-speech call, before it is
// handed to the artifact store. Ownership transfers to the store on Store.
type SynthesizedAudio struct {
	Bytes    []byte
	MIMEType string
	// Duration in seconds, probed from the container. Zero when the format
	// could not be probed.
	Duration float64
}

// Artifact is a stored synthesized-audio blob as returned by retrieval.
// Bytes are a complete private copy; eviction cannot truncate them.
type Artifact struct {
	ID       string
	Bytes    []byte
	MIMEType string
}

// Exchange is one complete user-utterance-to-spoken-reply round trip.
// It is held only in the response payload and never persisted.
type Exchange struct {
	UserText      string  `json:"user_text"`
	AIText        string  `json:"ai_text"`
	AudioRef      string  `json:"audio_ref"`
	AudioDuration float64 `json:"audio_duration"`
}
