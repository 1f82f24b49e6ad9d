package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/milad-ghiami/EPANET/model"
)

// Record kinds in a results stream.
const (
	kindHeader = "header"
	kindPeriod = "period"
)

// StreamWriter writes results as a sequence of length-delimited
// google.protobuf.Struct messages: one header record followed by one
// record per period. Per-element values are stored column-wise.
type StreamWriter struct {
	f *os.File
	w *bufio.Writer
}

// CreateStream creates (or truncates) a results stream at path.
func CreateStream(path string) (*StreamWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create results file: %w", err)
	}
	return &StreamWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *StreamWriter) write(msg *structpb.Struct) error {
	if _, err := protodelim.MarshalTo(s.w, msg); err != nil {
		return fmt.Errorf("failed to write results record: %w", err)
	}
	return nil
}

// WriteHeader writes the header record.
func (s *StreamWriter) WriteHeader(_ context.Context, h Header) error {
	return s.write(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":          structpb.NewStringValue(kindHeader),
		"title":         structpb.NewStringValue(h.Title),
		"flow_units":    structpb.NewStringValue(h.FlowUnits),
		"length_units":  structpb.NewStringValue(h.LengthUnits),
		"pressure":      structpb.NewStringValue(h.Pressure),
		"quality_type":  structpb.NewStringValue(h.QualityType),
		"quality_units": structpb.NewStringValue(h.QualityUnits),
		"node_ids":      stringValues(h.NodeIDs),
		"node_types":    stringValues(h.NodeTypes),
		"link_ids":      stringValues(h.LinkIDs),
		"link_types":    stringValues(h.LinkTypes),
		"duration":      structpb.NewNumberValue(float64(h.Duration)),
		"report_start":  structpb.NewNumberValue(float64(h.ReportStart)),
		"report_step":   structpb.NewNumberValue(float64(h.ReportStep)),
	}})
}

// WritePeriod appends one period record.
func (s *StreamWriter) WritePeriod(_ context.Context, p Period) error {
	nn, nl := len(p.Nodes), len(p.Links)
	demand, head, pressure, nq := make([]float64, nn), make([]float64, nn), make([]float64, nn), make([]float64, nn)
	for i, r := range p.Nodes {
		demand[i], head[i], pressure[i], nq[i] = r.Demand, r.Head, r.Pressure, r.Quality
	}
	flow, vel, loss, lq, status := make([]float64, nl), make([]float64, nl), make([]float64, nl), make([]float64, nl), make([]float64, nl)
	for k, r := range p.Links {
		flow[k], vel[k], loss[k], lq[k], status[k] = r.Flow, r.Velocity, r.Headloss, r.Quality, float64(r.Status)
	}
	return s.write(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":          structpb.NewStringValue(kindPeriod),
		"time":          structpb.NewNumberValue(float64(p.Time)),
		"node_demand":   numberValues(demand),
		"node_head":     numberValues(head),
		"node_pressure": numberValues(pressure),
		"node_quality":  numberValues(nq),
		"link_flow":     numberValues(flow),
		"link_velocity": numberValues(vel),
		"link_headloss": numberValues(loss),
		"link_quality":  numberValues(lq),
		"link_status":   numberValues(status),
	}})
}

// Close flushes buffered records and closes the file.
func (s *StreamWriter) Close() error {
	return errors.Join(s.w.Flush(), s.f.Close())
}

// ReadStream decodes a results stream written by StreamWriter.
func ReadStream(r io.Reader) (Header, []Period, error) {
	var (
		h       Header
		periods []Period
		seen    bool
	)
	br := bufio.NewReader(r)
	for {
		msg := &structpb.Struct{}
		err := protodelim.UnmarshalFrom(br, msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return h, nil, fmt.Errorf("failed to read results record: %w", err)
		}
		f := msg.GetFields()
		switch f["kind"].GetStringValue() {
		case kindHeader:
			seen = true
			h = Header{
				Title:        f["title"].GetStringValue(),
				FlowUnits:    f["flow_units"].GetStringValue(),
				LengthUnits:  f["length_units"].GetStringValue(),
				Pressure:     f["pressure"].GetStringValue(),
				QualityType:  f["quality_type"].GetStringValue(),
				QualityUnits: f["quality_units"].GetStringValue(),
				NodeIDs:      stringList(f["node_ids"]),
				NodeTypes:    stringList(f["node_types"]),
				LinkIDs:      stringList(f["link_ids"]),
				LinkTypes:    stringList(f["link_types"]),
				Duration:     int64(f["duration"].GetNumberValue()),
				ReportStart:  int64(f["report_start"].GetNumberValue()),
				ReportStep:   int64(f["report_step"].GetNumberValue()),
			}
		case kindPeriod:
			periods = append(periods, decodePeriod(f))
		default:
			return h, nil, fmt.Errorf("unknown results record kind %q", f["kind"].GetStringValue())
		}
	}
	if !seen {
		return h, nil, errors.New("results stream has no header")
	}
	return h, periods, nil
}

func decodePeriod(f map[string]*structpb.Value) Period {
	demand, head := numberList(f["node_demand"]), numberList(f["node_head"])
	pressure, nq := numberList(f["node_pressure"]), numberList(f["node_quality"])
	flow, vel := numberList(f["link_flow"]), numberList(f["link_velocity"])
	loss, lq, status := numberList(f["link_headloss"]), numberList(f["link_quality"]), numberList(f["link_status"])

	p := Period{
		Time:  int64(f["time"].GetNumberValue()),
		Nodes: make([]NodeResult, len(head)),
		Links: make([]LinkResult, len(flow)),
	}
	for i := range p.Nodes {
		p.Nodes[i] = NodeResult{Demand: at(demand, i), Head: at(head, i), Pressure: at(pressure, i), Quality: at(nq, i)}
	}
	for k := range p.Links {
		p.Links[k] = LinkResult{
			Flow:     at(flow, k),
			Velocity: at(vel, k),
			Headloss: at(loss, k),
			Quality:  at(lq, k),
			Status:   model.LinkStatus(at(status, k)),
		}
	}
	return p
}

func numberValues(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringValues(xs []string) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewStringValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func numberList(v *structpb.Value) []float64 {
	vals := v.GetListValue().GetValues()
	out := make([]float64, len(vals))
	for i, x := range vals {
		out[i] = x.GetNumberValue()
	}
	return out
}

func stringList(v *structpb.Value) []string {
	vals := v.GetListValue().GetValues()
	out := make([]string, len(vals))
	for i, x := range vals {
		out[i] = x.GetStringValue()
	}
	return out
}
