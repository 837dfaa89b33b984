package synth

import (
	"math"
	"testing"
)

func TestMixerSilentWhenEmpty(t *testing.T) {
	m := NewMixer(DefaultSampleRate, DefaultSeed)
	if m.Active() != 0 {
		t.Fatalf("Active() = %d before any spawn", m.Active())
	}
	for i := 0; i < 100; i++ {
		if s := m.RenderSample(); s != 0 {
			t.Fatalf("sample %d = %v, want 0", i, s)
		}
	}
}

func TestMixerVoiceSelfTerminates(t *testing.T) {
	tests := []struct {
		trigger Trigger
	}{
		{KickTrigger()},
		{SnareTrigger()},
		{HiHatTrigger()},
		{BassTrigger(36)},
		{Trigger{Kind: Pad, Note: 60, Gain: 1}},
		{Trigger{Kind: Lead, Note: 72, Gain: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			m := NewMixer(DefaultSampleRate, DefaultSeed)
			m.Spawn(tt.trigger)
			want := int(math.Ceil(float64(Duration(tt.trigger.Kind)) * DefaultSampleRate))
			n := 0
			prev := m.Active()
			for m.Active() > 0 {
				m.RenderSample()
				n++
				if m.Active() > prev {
					t.Fatal("voice count increased without a spawn")
				}
				prev = m.Active()
				if n > want+2 {
					t.Fatalf("voice still active after %d samples", n)
				}
			}
			if n < want-2 {
				t.Errorf("voice finished after %d samples, want about %d", n, want)
			}
		})
	}
}

func TestMixerOverlappingVoicesSum(t *testing.T) {
	single := NewMixer(DefaultSampleRate, DefaultSeed)
	double := NewMixer(DefaultSampleRate, DefaultSeed)
	single.Spawn(KickTrigger())
	double.Spawn(KickTrigger())
	double.Spawn(KickTrigger())
	if double.Active() != 2 {
		t.Fatalf("Active() = %d, want 2 independent voices", double.Active())
	}
	for i := 0; i < 2000; i++ {
		a := single.RenderSample()
		b := double.RenderSample()
		want := clamp(2 * a)
		if math.Abs(float64(b-want)) > 1e-6 {
			t.Fatalf("sample %d: two kicks = %v, want %v", i, b, want)
		}
	}
}

func TestMixerClampsManyVoices(t *testing.T) {
	m := NewMixer(DefaultSampleRate, DefaultSeed)
	for i := 0; i < 100; i++ {
		m.Spawn(KickTrigger())
		m.Spawn(SnareTrigger())
		m.Spawn(BassTrigger(40))
	}
	hitRail := false
	for m.Active() > 0 {
		s := m.RenderSample()
		if s < -1 || s > 1 {
			t.Fatalf("mixed sample %v out of range", s)
		}
		if s == 1 || s == -1 {
			hitRail = true
		}
	}
	if !hitRail {
		t.Error("expected 300 voices to drive the mix into the clamp")
	}
}

func TestMixerLastSampleIncluded(t *testing.T) {
	// A voice's final sample is summed in the same pass that removes it.
	m := NewMixer(DefaultSampleRate, DefaultSeed)
	m.Spawn(BassTrigger(60))
	v := NewVoice(BassTrigger(60), DefaultSampleRate)
	rng := NewXorShift(DefaultSeed)
	for m.Active() > 0 {
		want, _ := v.Next(&rng)
		if got := m.RenderSample(); got != want {
			t.Fatalf("mixer = %v, voice = %v", got, want)
		}
	}
}

func TestMixerGain(t *testing.T) {
	full := NewMixer(DefaultSampleRate, DefaultSeed)
	half := NewMixer(DefaultSampleRate, DefaultSeed)
	full.Spawn(BassTrigger(45))
	half.Spawn(Trigger{Kind: Bass, Note: 45, Gain: 0.5})
	for i := 0; i < 500; i++ {
		a, b := full.RenderSample(), half.RenderSample()
		if math.Abs(float64(a*0.5-b)) > 1e-6 {
			t.Fatalf("sample %d: half gain %v, want %v", i, b, a*0.5)
		}
	}
}

func TestMixerRenderSampleDoesNotAllocate(t *testing.T) {
	m := NewMixer(DefaultSampleRate, DefaultSeed)
	for i := 0; i < 16; i++ {
		m.Spawn(SnareTrigger())
	}
	allocs := testing.AllocsPerRun(1000, func() {
		m.RenderSample()
	})
	if allocs != 0 {
		t.Errorf("RenderSample allocated %v times per run", allocs)
	}
}

func TestMixerReset(t *testing.T) {
	m := NewMixer(0, 0)
	if m.SampleRate() != DefaultSampleRate {
		t.Errorf("SampleRate() = %d, want default", m.SampleRate())
	}
	m.Spawn(KickTrigger())
	m.Reset()
	if m.Active() != 0 {
		t.Errorf("Active() = %d after Reset", m.Active())
	}
}

func BenchmarkMixerRenderSample(b *testing.B) {
	m := NewMixer(DefaultSampleRate, DefaultSeed)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if m.Active() == 0 {
			m.Spawn(KickTrigger())
			m.Spawn(SnareTrigger())
			m.Spawn(HiHatTrigger())
			m.Spawn(BassTrigger(36))
		}
		m.RenderSample()
	}
}
