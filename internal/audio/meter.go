package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/viterin/vek/vek32"
)

// Report summarizes a rendered signal.
type Report struct {
	Samples  int
	Duration time.Duration
	Peak     float32
	RMS      float32
}

// PeakDBFS returns the peak level in dB relative to full scale.
func (r Report) PeakDBFS() float64 {
	return dbfs(r.Peak)
}

// RMSDBFS returns the RMS level in dB relative to full scale.
func (r Report) RMSDBFS() float64 {
	return dbfs(r.RMS)
}

func (r Report) String() string {
	return fmt.Sprintf("%d samples (%s), peak %.1f dBFS, rms %.1f dBFS",
		r.Samples, r.Duration.Round(time.Millisecond), r.PeakDBFS(), r.RMSDBFS())
}

func dbfs(v float32) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(v))
}

// Meter accumulates peak and RMS over a stream of chunks.
type Meter struct {
	n     int
	peak  float32
	sumSq float64
	tmp   []float32
}

// Add folds chunk into the running statistics.
func (m *Meter) Add(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	if cap(m.tmp) < len(chunk) {
		m.tmp = make([]float32, len(chunk))
	}
	tmp := m.tmp[:len(chunk)]
	sq := vek32.Mul_Into(tmp, chunk, chunk)
	m.sumSq += float64(vek32.Mean(sq)) * float64(len(chunk))

	copy(tmp, chunk)
	vek32.Abs_Inplace(tmp)
	m.peak = max(m.peak, vek32.Max(tmp))
	m.n += len(chunk)
}

// Report returns the statistics so far for a signal at sampleRate.
func (m *Meter) Report(sampleRate int) Report {
	r := Report{Samples: m.n, Peak: m.peak}
	if m.n > 0 {
		r.RMS = float32(math.Sqrt(m.sumSq / float64(m.n)))
	}
	if sampleRate > 0 {
		r.Duration = time.Duration(m.n) * time.Second / time.Duration(sampleRate)
	}
	return r
}

// Analyze measures a complete buffer.
func Analyze(buf []float32, sampleRate int) Report {
	var m Meter
	m.Add(buf)
	return m.Report(sampleRate)
}
