package voice

import "context"

// Transcriber turns a recorded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte, filename string) (string, error)
}

// Synthesizer renders text as raw PCM16LE mono audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	SampleRate() int
}
