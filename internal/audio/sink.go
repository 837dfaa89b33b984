package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// SampleSink receives an ordered run of 16-bit PCM samples and finalizes
// the container on Close.
type SampleSink interface {
	WriteSamples(pcm []int16) error
	Close() error
}

// WAVSink writes mono or interleaved PCM into a RIFF/WAVE container.
type WAVSink struct {
	enc   *wav.Encoder
	buf   *goaudio.IntBuffer
	file  *os.File
	count int
}

// NewWAVSink wraps w. The encoder seeks back to patch the header on Close.
func NewWAVSink(w io.WriteSeeker, sampleRate, channels int) *WAVSink {
	return &WAVSink{
		enc: wav.NewEncoder(w, sampleRate, wavBitDepth, channels, wavPCMFormat),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: wavBitDepth,
		},
	}
}

// CreateWAV creates (or truncates) path and returns a sink writing to it.
func CreateWAV(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", path, err)
	}
	s := NewWAVSink(f, sampleRate, channels)
	s.file = f
	return s, nil
}

// WriteSamples appends pcm to the data chunk.
func (s *WAVSink) WriteSamples(pcm []int16) error {
	if cap(s.buf.Data) < len(pcm) {
		s.buf.Data = make([]int, len(pcm))
	}
	s.buf.Data = s.buf.Data[:len(pcm)]
	for i, v := range pcm {
		s.buf.Data[i] = int(v)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("error writing samples: %w", err)
	}
	s.count += len(pcm)
	return nil
}

// Samples returns how many samples have been written.
func (s *WAVSink) Samples() int {
	return s.count
}

// Close writes the final header sizes and closes the file if the sink
// created it.
func (s *WAVSink) Close() error {
	err := s.enc.Close()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	if err != nil {
		return fmt.Errorf("error closing wav: %w", err)
	}
	return nil
}
