package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(10 * time.Millisecond)

	f.Advance(5 * time.Millisecond)
	select {
	case <-tk.C:
		t.Fatal("ticker fired early")
	default:
	}

	f.Advance(5 * time.Millisecond)
	select {
	case ts := <-tk.C:
		assert.Equal(t, time.Unix(0, 0).Add(10*time.Millisecond), ts)
	default:
		t.Fatal("ticker did not fire")
	}
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(10 * time.Millisecond)
	require.Equal(t, 1, f.Tickers())

	tk.Stop()
	f.Advance(time.Second)

	select {
	case <-tk.C:
		t.Fatal("stopped ticker fired")
	default:
	}
	assert.Equal(t, 0, f.Tickers())
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(10 * time.Millisecond)

	f.Advance(100 * time.Millisecond)
	<-tk.C
	select {
	case <-tk.C:
		t.Fatal("expected backlog to be dropped")
	default:
	}
	assert.Equal(t, time.Unix(0, 0).Add(100*time.Millisecond), f.Now())
}
