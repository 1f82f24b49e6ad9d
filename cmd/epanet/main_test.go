package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

const net1 = "../../toolkit/testdata/net1.json"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"run", "batch", "validate"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("command %q missing: %v", name, err)
		}
	}
	if f := cmd.PersistentFlags().Lookup("config"); f == nil || f.Shorthand != "c" {
		t.Fatalf("config flag missing")
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	rpt := filepath.Join(dir, "net1.rpt")
	out, err := execute(t, "run", net1, rpt, filepath.Join(dir, "net1.db"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"Computing hydraulics...", "Simulation complete."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output misses %q:\n%s", want, out)
		}
	}
	if info, err := os.Stat(rpt); err != nil || info.Size() == 0 {
		t.Fatalf("report not written: %v", err)
	}
}

func TestRunCommandMissingInput(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "none.json"))
	if err == nil {
		t.Fatalf("expected an error for a missing input")
	}
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", net1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "11 nodes (2 tanks/reservoirs), 13 links, 1 patterns") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBatchCommand(t *testing.T) {
	in := t.TempDir()
	data, err := os.ReadFile(net1)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	inputs := []string{filepath.Join(in, "a.json"), filepath.Join(in, "b.json")}
	for _, p := range inputs {
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	outDir := filepath.Join(t.TempDir(), "runs")

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"batch", "--out-dir", outDir, "--format", "db", "-j", "2"}, inputs...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("batch: %v\n%s", err, buf.String())
	}
	for _, name := range []string{"a.rpt", "a.db", "b.rpt", "b.db"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestBatchReportsFailures(t *testing.T) {
	outDir := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing.json")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", "--out-dir", outDir, net1, missing})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "1 of 2 simulations failed") {
		t.Fatalf("batch err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "net1.rpt")); err != nil {
		t.Fatalf("the good run should still finish: %v", err)
	}
}

func TestBatchRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "batch", "--format", "csv", net1)
	if err == nil || !strings.Contains(err.Error(), "invalid results format") {
		t.Fatalf("err = %v", err)
	}
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epanet.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  concurrency: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := execute(t, "--config", path, "validate", net1)
	if err == nil || !strings.Contains(err.Error(), "concurrency") {
		t.Fatalf("err = %v", err)
	}
}

func TestBatchMetrics(t *testing.T) {
	opts := &rootOptions{}
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := opts.setup(cmd, nil); err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer opts.teardown(cmd, nil)

	batch := &batchOptions{OutDir: t.TempDir(), Format: "bin"}
	if err := runBatch(cmd, opts, batch, []string{net1}); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	m := &dto.Metric{}
	if err := opts.batch.RunDuration.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("run durations observed = %d", got)
	}
	if got := testutil.ToFloat64(opts.batch.RunsInFlight); got != 0 {
		t.Fatalf("runs in flight = %g", got)
	}
	if got := testutil.ToFloat64(opts.batch.RunFailures); got != 0 {
		t.Fatalf("failures = %g", got)
	}
	if got := testutil.ToFloat64(opts.solver.OpenProjects); got != 0 {
		t.Fatalf("open projects after batch = %g", got)
	}
}
