package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/wslive/internal/metrics"
)

func TestMonitor_EvictsOnFollowingTick(t *testing.T) {
	r := NewRegistry(nil)
	m := NewMonitor(r, time.Hour, nil, nil)

	var handles []*fakeHandle
	var conns []*Conn
	for i := 0; i < 3; i++ {
		h := newFakeHandle()
		c, _ := r.Register(h, "a")
		handles = append(handles, h)
		conns = append(conns, c)
	}

	// tick 1: probe everyone, nobody answers
	probed, evicted := m.Sweep()
	if probed != 3 || evicted != 0 {
		t.Errorf("tick 1: probed=%d evicted=%d, want 3, 0", probed, evicted)
	}
	if r.Len() != 3 {
		t.Errorf("tick 1: Len() = %d, want 3", r.Len())
	}
	for i, h := range handles {
		if h.pingCount() != 1 {
			t.Errorf("handle %d pings = %d, want 1", i, h.pingCount())
		}
		if h.wasAborted() {
			t.Errorf("handle %d aborted on the tick it was probed", i)
		}
		if conns[i].Alive() {
			t.Errorf("conn %d should be marked not alive after probe", conns[i].ID)
		}
	}

	// tick 2: all three missed the probe
	probed, evicted = m.Sweep()
	if probed != 0 || evicted != 3 {
		t.Errorf("tick 2: probed=%d evicted=%d, want 0, 3", probed, evicted)
	}
	if r.Len() != 0 {
		t.Errorf("tick 2: Len() = %d, want 0", r.Len())
	}
	for i, h := range handles {
		if !h.wasAborted() {
			t.Errorf("handle %d not aborted", i)
		}
	}
}

func TestMonitor_AckingConnNeverEvicted(t *testing.T) {
	r := NewRegistry(nil)
	m := NewMonitor(r, time.Hour, nil, nil)

	h := newFakeHandle()
	c, _ := r.Register(h, "a")

	for tick := 1; tick <= 10; tick++ {
		if _, evicted := m.Sweep(); evicted != 0 {
			t.Fatalf("tick %d evicted an acknowledging connection", tick)
		}
		c.MarkAlive() // pong
	}

	if h.pingCount() != 10 {
		t.Errorf("pings = %d, want 10", h.pingCount())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestMonitor_MixedLiveness(t *testing.T) {
	r := NewRegistry(nil)
	m := NewMonitor(r, time.Hour, nil, nil)

	live, _ := r.Register(newFakeHandle(), "live")
	dead, _ := r.Register(newFakeHandle(), "dead")

	m.Sweep()
	live.MarkAlive()
	m.Sweep()

	if _, ok := lookup(r, live.ID); !ok {
		t.Error("acknowledging conn was evicted")
	}
	if _, ok := lookup(r, dead.ID); ok {
		t.Error("silent conn was not evicted")
	}
}

func TestMonitor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm := metrics.NewServer(reg)
	r := NewRegistry(nil, WithRegistryMetrics(sm))
	m := NewMonitor(r, time.Hour, nil, sm)

	r.Register(newFakeHandle(), "a")
	r.Register(newFakeHandle(), "b")
	m.Sweep()
	m.Sweep()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		sample := mf.GetMetric()[0]
		if c := sample.GetCounter(); c != nil {
			got[mf.GetName()] = c.GetValue()
		} else {
			got[mf.GetName()] = sample.GetGauge().GetValue()
		}
	}

	if got["wslive_server_heartbeat_probes_total"] != 2 {
		t.Errorf("probes = %v, want 2", got["wslive_server_heartbeat_probes_total"])
	}
	if got["wslive_server_connections_evicted_total"] != 2 {
		t.Errorf("evicted = %v, want 2", got["wslive_server_connections_evicted_total"])
	}
	if got["wslive_server_connections_active"] != 0 {
		t.Errorf("active = %v, want 0", got["wslive_server_connections_active"])
	}
}

func TestMonitor_StartStop(t *testing.T) {
	r := NewRegistry(nil)
	m := NewMonitor(r, 20*time.Millisecond, nil, nil)

	c, _ := r.Register(newFakeHandle(), "a")

	m.Start(context.Background())
	m.Start(context.Background())

	waitDone(t, c)

	m.Stop()
	m.Stop()

	// stopped monitor leaves new connections alone
	r.Register(newFakeHandle(), "b")
	time.Sleep(100 * time.Millisecond)
	if r.Len() != 1 {
		t.Errorf("Len() = %d after Stop, want 1", r.Len())
	}
}

func TestMonitor_ContextCancel(t *testing.T) {
	r := NewRegistry(nil)
	m := NewMonitor(r, 20*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancel")
	}
}

func TestNewMonitor_DefaultInterval(t *testing.T) {
	m := NewMonitor(NewRegistry(nil), 0, nil, nil)
	if m.interval != DefaultHeartbeatInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultHeartbeatInterval)
	}
}
