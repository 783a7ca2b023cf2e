package connection

import (
	"math"
	"testing"
	"time"

	"github.com/rickgao/wslive/internal/config"
)

func TestFixedDelay(t *testing.T) {
	p := FixedDelay{Delay: 1000 * time.Millisecond}

	for _, failures := range []int{1, 2, 50, 10000} {
		delay, ok := p.Next(failures)
		if !ok {
			t.Errorf("Next(%d) gave up, fixed delay retries forever", failures)
		}
		if delay != time.Second {
			t.Errorf("Next(%d) = %v, want %v", failures, delay, time.Second)
		}
	}
}

func TestFixedDelay_MaxAttempts(t *testing.T) {
	p := FixedDelay{Delay: time.Second, MaxAttempts: 3}

	if _, ok := p.Next(3); !ok {
		t.Error("Next(3) should still retry")
	}
	if _, ok := p.Next(4); ok {
		t.Error("Next(4) should give up")
	}
}

func TestFixedDelay_ZeroUsesDefault(t *testing.T) {
	if delay, _ := (FixedDelay{}).Next(1); delay != DefaultReconnectDelay {
		t.Errorf("Next(1) = %v, want %v", delay, DefaultReconnectDelay)
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff{Base: 100 * time.Millisecond, Max: time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{100, time.Second},
	}

	for _, tt := range tests {
		got, ok := p.Next(tt.failures)
		if !ok {
			t.Fatalf("Next(%d) gave up", tt.failures)
		}
		if got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: time.Minute, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		got, _ := p.Next(1)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("Next(1) = %v, want within 20%% of 1s", got)
		}
	}
}

func TestExponentialBackoff_NoOverflow(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second}

	for _, failures := range []int{35, 64, 100, 1 << 20} {
		got, ok := p.Next(failures)
		if !ok {
			t.Fatalf("Next(%d) gave up", failures)
		}
		if got != DefaultMaxBackoff {
			t.Errorf("Next(%d) = %v, want %v", failures, got, DefaultMaxBackoff)
		}
	}
}

func TestExponentialBackoff_HugeMax(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: time.Duration(math.MaxInt64)}

	got, _ := p.Next(200)
	if got != time.Duration(math.MaxInt64) {
		t.Errorf("Next(200) = %v, want %v", got, time.Duration(math.MaxInt64))
	}
}

func TestExponentialBackoff_LargeJitterStaysPositive(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: 10 * time.Second, Jitter: 3}

	for i := 0; i < 200; i++ {
		got, _ := p.Next(i%6 + 1)
		if got <= 0 || got > 10*time.Second {
			t.Fatalf("Next(%d) = %v, want in (0, 10s]", i%6+1, got)
		}
	}
}

func TestExponentialBackoff_MaxAttempts(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: time.Minute, MaxAttempts: 2}

	if _, ok := p.Next(2); !ok {
		t.Error("Next(2) should still retry")
	}
	if _, ok := p.Next(3); ok {
		t.Error("Next(3) should give up")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	fixed := PolicyFromConfig(config.ReconnectConfig{Policy: "fixed", Delay: 500 * time.Millisecond})
	if _, ok := fixed.(FixedDelay); !ok {
		t.Errorf("fixed policy = %T, want FixedDelay", fixed)
	}
	if d, _ := fixed.Next(7); d != 500*time.Millisecond {
		t.Errorf("fixed Next(7) = %v, want 500ms", d)
	}

	exp := PolicyFromConfig(config.ReconnectConfig{
		Policy:      "exponential",
		Delay:       time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	})
	eb, ok := exp.(ExponentialBackoff)
	if !ok {
		t.Fatalf("exponential policy = %T, want ExponentialBackoff", exp)
	}
	if eb.Base != time.Second || eb.Max != 30*time.Second || eb.MaxAttempts != 5 {
		t.Errorf("ExponentialBackoff = %+v", eb)
	}
}
