package sound

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	plays chan Tone
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{plays: make(chan Tone, 10)}
}

func (f *fakeOutput) Play(ctx context.Context, tone Tone) error {
	f.plays <- tone
	return nil
}

func hostFor(out Output, opts ContextOptions, created *int32, closed *int32) *Host {
	return NewHost(func() (Output, error) {
		if created != nil {
			atomic.AddInt32(created, 1)
		}
		return out, nil
	}, opts, func() {
		if closed != nil {
			atomic.AddInt32(closed, 1)
		}
	})
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("work")
	require.NoError(t, err)
	assert.Equal(t, KindWork, k)
	k, err = ParseKind(" Break ")
	require.NoError(t, err)
	assert.Equal(t, KindBreak, k)
	_, err = ParseKind("lunch")
	assert.Error(t, err)
}

func TestTones(t *testing.T) {
	work := ToneFor(KindWork)
	assert.Equal(t, 1300*time.Millisecond, work.Duration)
	require.Len(t, work.Beeps, 2)
	assert.Equal(t, 880.0, work.Beeps[1].Freq)

	brk := ToneFor(KindBreak)
	assert.Equal(t, 900*time.Millisecond, brk.Duration)
	require.Len(t, brk.Beeps, 1)
	assert.Equal(t, 523.25, brk.Beeps[0].Freq)
}

func TestBeepEnvelope(t *testing.T) {
	first := ToneFor(KindWork).Beeps[0]
	assert.Equal(t, 0.0, first.Gain(0))
	assert.InDelta(t, 0.25, first.Gain(50*time.Millisecond), 1e-9)
	assert.InDelta(t, 0.5, first.Gain(100*time.Millisecond), 1e-9)
	assert.InDelta(t, 0.25, first.Gain(300*time.Millisecond), 1e-9)
	assert.Equal(t, 0.0, first.Gain(500*time.Millisecond))
	assert.Equal(t, 0.0, first.Gain(600*time.Millisecond))

	second := ToneFor(KindWork).Beeps[1]
	assert.Equal(t, 0.0, second.Gain(650*time.Millisecond))
	assert.InDelta(t, 0.5, second.Gain(800*time.Millisecond), 1e-9)

	held := ToneFor(KindBreak).Beeps[0]
	assert.InDelta(t, 0.4, held.Gain(200*time.Millisecond), 1e-9)
	assert.InDelta(t, 0.4, held.Gain(399*time.Millisecond), 1e-9)
	assert.InDelta(t, 0.2, held.Gain(600*time.Millisecond), 1e-9)
}

func TestSamplesAndWAV(t *testing.T) {
	samples := ToneFor(KindWork).Samples(SampleRate)
	assert.Len(t, samples, 57330)
	for _, s := range samples {
		require.LessOrEqual(t, s, 1.0)
		require.GreaterOrEqual(t, s, -1.0)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, samples, SampleRate))
	raw := buf.Bytes()
	assert.Len(t, raw, 44+2*len(samples))
	assert.Equal(t, "RIFF", string(raw[0:4]))
	assert.Equal(t, "WAVE", string(raw[8:12]))
	assert.Equal(t, uint32(SampleRate), binary.LittleEndian.Uint32(raw[24:28]))
	assert.Equal(t, uint32(2*len(samples)), binary.LittleEndian.Uint32(raw[40:44]))
}

func TestOverlappingRequestsPlayOnce(t *testing.T) {
	out := newFakeOutput()
	host := hostFor(out, ContextOptions{Cooldown: time.Hour, CloseBuffer: time.Hour}, nil, nil)
	defer host.Close()

	ctx, err := host.Create()
	require.NoError(t, err)

	d, err := ctx.Play(KindWork)
	require.NoError(t, err)
	assert.Equal(t, 1300*time.Millisecond, d)

	d, err = ctx.Play(KindBreak)
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, d, "dropped requests report the default duration")

	select {
	case tone := <-out.plays:
		assert.Equal(t, ToneFor(KindWork), tone)
	case <-time.After(time.Second):
		t.Fatal("no sound was played")
	}
	select {
	case <-out.plays:
		t.Fatal("the overlapping request was played")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCooldownAllowsNextSound(t *testing.T) {
	out := newFakeOutput()
	host := hostFor(out, ContextOptions{Cooldown: 20 * time.Millisecond, CloseBuffer: time.Hour}, nil, nil)
	defer host.Close()
	ctx, err := host.Create()
	require.NoError(t, err)

	_, err = ctx.Play(KindWork)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	d, err := ctx.Play(KindBreak)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Millisecond, d)

	for i := 0; i < 2; i++ {
		select {
		case <-out.plays:
		case <-time.After(time.Second):
			t.Fatalf("sound %d was not played", i+1)
		}
	}
}

func TestContextClosesItselfAndSignals(t *testing.T) {
	var closed int32
	host := hostFor(newFakeOutput(), ContextOptions{Cooldown: 10 * time.Millisecond, CloseBuffer: 10 * time.Millisecond}, nil, &closed)
	ctx, err := host.Create()
	require.NoError(t, err)

	_, err = ctx.Play(KindBreak)
	require.NoError(t, err)

	require.Eventually(t, ctx.Closed, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 1 }, time.Second, 10*time.Millisecond)

	_, err = ctx.Play(KindWork)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestHostRejectsDuplicate(t *testing.T) {
	var created int32
	host := hostFor(newFakeOutput(), ContextOptions{}, &created, nil)
	defer host.Close()

	first, err := host.Create()
	require.NoError(t, err)
	again, err := host.Create()
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Same(t, first, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&created))

	first.Close()
	third, err := host.Create()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestPlayerProvisionsLazily(t *testing.T) {
	var created int32
	out := newFakeOutput()
	player := NewPlayer(hostFor(out, ContextOptions{Cooldown: time.Millisecond, CloseBuffer: time.Hour}, &created, nil))
	assert.Equal(t, int32(0), atomic.LoadInt32(&created))

	player.Play(KindWork)
	player.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	<-out.plays

	time.Sleep(5 * time.Millisecond)
	_, err := player.PlayNow(KindBreak)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&created), "a live context is reused")
}

func TestPlayerReprovisionsAfterClose(t *testing.T) {
	var created int32
	host := hostFor(newFakeOutput(), ContextOptions{Cooldown: time.Millisecond, CloseBuffer: time.Hour}, &created, nil)
	player := NewPlayer(host)
	defer host.Close()

	_, err := player.PlayNow(KindWork)
	require.NoError(t, err)
	player.ctx.Close()
	player.HandleClosed()
	assert.Nil(t, player.ctx)

	_, err = player.PlayNow(KindWork)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&created))
}

func TestPlayerReportsUnavailableOutput(t *testing.T) {
	host := NewHost(func() (Output, error) {
		return nil, fmt.Errorf("%w: no player", ErrUnavailable)
	}, ContextOptions{}, nil)
	_, err := NewPlayer(host).PlayNow(KindWork)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCommandOutputMissingBinary(t *testing.T) {
	_, err := NewCommandOutput("definitely-not-an-audio-player-xyz")
	assert.ErrorIs(t, err, ErrUnavailable)
}
