package voice

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is a local fallback provider used when no cloud voice
// credentials are configured. Transcriptions return a fixed phrase and
// synthesis emits a short burst of silence so the audio pipeline stays
// exercisable end to end.
type MockProvider struct {
	mu          sync.Mutex
	transcripts []string
	spoken      []string
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

// QueueTranscript sets the text returned by the next Transcribe call.
func (p *MockProvider) QueueTranscript(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, text)
}

// Spoken returns every text passed to Synthesize so far.
func (p *MockProvider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.spoken))
	copy(out, p.spoken)
	return out
}

func (p *MockProvider) Transcribe(_ context.Context, clip []byte, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.transcripts) > 0 {
		text := p.transcripts[0]
		p.transcripts = p.transcripts[1:]
		return text, nil
	}
	if len(clip) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}

func (p *MockProvider) SampleRate() int { return ttsSampleRate }

func (p *MockProvider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.spoken = append(p.spoken, text)
	p.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// 100 ms of silence per call keeps downstream WAV wrapping honest.
	return make([]byte, ttsSampleRate/10*2), nil
}
