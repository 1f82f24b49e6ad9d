package hydraulics

import (
	"context"
	"math"
	"testing"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/model"
)

func loadNet1(t *testing.T) *core.Network {
	t.Helper()
	net, err := core.LoadNetworkFile("../../core/testdata/net1.yaml")
	if err != nil {
		t.Fatalf("load net1: %v", err)
	}
	return net
}

func TestNet1ExtendedPeriod(t *testing.T) {
	net := loadNet1(t)
	ctx := context.Background()

	s := New(net)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Init(Save); err != nil {
		t.Fatalf("Init: %v", err)
	}
	steps := 0
	for {
		if _, err := s.Run(ctx); err != nil {
			t.Fatalf("Run at t=%d: %v", s.Now(), err)
		}
		tstep, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tstep == 0 {
			break
		}
		steps++
		if steps > 1000 {
			t.Fatalf("hydraulic loop did not terminate")
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Now() != net.Times.Duration {
		t.Fatalf("final time = %d, want %d", s.Now(), net.Times.Duration)
	}

	tr := s.Trajectory()
	if tr.End() != net.Times.Duration {
		t.Fatalf("trajectory end = %d", tr.End())
	}
	nodes, links := net.Nodes(), net.Links()
	tank, _ := net.NodeIndex("2")
	for i, p := range tr.Periods {
		if i+1 < len(tr.Periods) && p.Time+p.Step != tr.Periods[i+1].Time {
			t.Fatalf("period %d ends at %d, next starts at %d", i, p.Time+p.Step, tr.Periods[i+1].Time)
		}
		// Flow is conserved at every junction.
		for n, node := range nodes {
			if node.Type != model.NodeJunction {
				continue
			}
			bal := 0.0
			for k, l := range links {
				if l.To == n+1 {
					bal += p.Flow[k]
				}
				if l.From == n+1 {
					bal -= p.Flow[k]
				}
			}
			if math.Abs(bal-p.Demand[n]) > 1e-6 {
				t.Fatalf("t=%d node %s: imbalance %v vs demand %v", p.Time, node.ID, bal, p.Demand[n])
			}
		}
		lvl := p.Head[tank-1] - nodes[tank-1].Elevation
		if lvl < nodes[tank-1].Tank.MinLevel-1e-6 || lvl > nodes[tank-1].Tank.MaxLevel+1e-6 {
			t.Fatalf("t=%d tank level %v out of range", p.Time, lvl)
		}
	}

	// Every report time has its own period.
	for at := int64(0); at <= net.Times.Duration; at += net.Times.ReportStep {
		p, err := tr.PeriodAt(at)
		if err != nil || p.Time != at {
			t.Fatalf("PeriodAt(%d) = %v, %v", at, p, err)
		}
	}
}
