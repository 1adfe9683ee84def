package sound

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind names the phase whose completion is being announced.
type Kind string

const (
	KindWork  Kind = "work"
	KindBreak Kind = "break"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWork:
		return KindWork, nil
	case KindBreak:
		return KindBreak, nil
	}
	return "", fmt.Errorf("unknown sound %q, want work or break", s)
}

// Beep is one sine tone with a linear attack, an optional hold at Peak and a
// linear release that reaches silence at End.
type Beep struct {
	Freq   float64
	Start  time.Duration
	End    time.Duration
	Attack time.Duration
	Hold   time.Duration // release starts here; zero means right after the attack
	Peak   float64
}

// Tone is what a Kind sounds like. Duration includes trailing silence.
type Tone struct {
	Beeps    []Beep
	Duration time.Duration
}

// DefaultDuration is reported when a request is dropped or nothing played.
const DefaultDuration = 1500 * time.Millisecond

// ToneFor returns the tone of kind: a high double beep after work, one
// lower, longer tone after a break.
func ToneFor(kind Kind) Tone {
	if kind == KindWork {
		return Tone{
			Beeps: []Beep{
				{Freq: 880, Start: 0, End: 500 * time.Millisecond, Attack: 100 * time.Millisecond, Peak: 0.5},
				{Freq: 880, Start: 700 * time.Millisecond, End: 1200 * time.Millisecond, Attack: 100 * time.Millisecond, Peak: 0.5},
			},
			Duration: 1300 * time.Millisecond,
		}
	}
	return Tone{
		Beeps: []Beep{
			{Freq: 523.25, Start: 0, End: 800 * time.Millisecond, Attack: 100 * time.Millisecond, Hold: 400 * time.Millisecond, Peak: 0.4},
		},
		Duration: 900 * time.Millisecond,
	}
}

// Gain returns the envelope of b at offset t from the tone start.
func (b Beep) Gain(t time.Duration) float64 {
	if t < b.Start || t >= b.End {
		return 0
	}
	rel := t - b.Start
	if rel < b.Attack {
		return b.Peak * float64(rel) / float64(b.Attack)
	}
	release := b.Start + b.Attack
	if b.Hold > 0 {
		release = b.Start + b.Hold
	}
	if t < release {
		return b.Peak
	}
	span := b.End - release
	if span <= 0 {
		return 0
	}
	return b.Peak * float64(b.End-t) / float64(span)
}

// Samples renders the tone as mono float samples in [-1, 1].
func (t Tone) Samples(rate int) []float64 {
	n := int(int64(rate) * int64(t.Duration) / int64(time.Second))
	out := make([]float64, n)
	for i := range out {
		at := time.Duration(float64(i) / float64(rate) * float64(time.Second))
		for _, b := range t.Beeps {
			if g := b.Gain(at); g > 0 {
				out[i] += g * math.Sin(2*math.Pi*b.Freq*float64(at-b.Start)/float64(time.Second))
			}
		}
		if out[i] > 1 {
			out[i] = 1
		} else if out[i] < -1 {
			out[i] = -1
		}
	}
	return out
}
