// Package benchmark compares the typed protoserial serializers, schema
// records, the official protobuf runtime and JSON on the same messages.
package benchmark

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/schema"
	"github.com/blockberries/protoserial/pkg/serial"
)

const benchSchemaYAML = `
package: bench
enums:
  - name: Severity
    values:
      - name: SEVERITY_UNSPECIFIED
      - name: SEVERITY_INFO
      - name: SEVERITY_WARN
      - name: SEVERITY_ERROR
messages:
  - name: SmallMessage
    fields:
      - {name: id, type: int64, optional: true}
      - {name: name, type: string, optional: true}
      - {name: active, type: bool, optional: true}
  - name: Metrics
    fields:
      - {name: count, type: uint64, optional: true}
      - {name: sum, type: double, optional: true}
      - {name: min, type: double, optional: true}
      - {name: max, type: double, optional: true}
      - {name: avg, type: double, optional: true}
      - {name: p50, type: double, optional: true}
      - {name: p95, type: double, optional: true}
      - {name: p99, type: double, optional: true}
      - {name: total_bytes, type: uint64, optional: true}
      - {name: error_count, type: uint32, optional: true}
  - name: Point
    fields:
      - {name: x, type: double, optional: true}
      - {name: y, type: double, optional: true}
      - {name: z, type: double, optional: true}
  - name: Event
    fields:
      - {name: id, type: string, optional: true}
      - {name: timestamp, type: sfixed64, optional: true}
      - {name: severity, type: Severity, optional: true}
      - {name: source, type: string, optional: true}
      - {name: tags, type: string, repeated: true}
      - {name: attrs, map: {key: string, value: string}}
      - {name: values, type: double, repeated: true, packed: true}
      - {name: origin, type: Point}
  - name: Batch
    fields:
      - {name: id, type: string, optional: true}
      - {name: events, type: Event, repeated: true}
`

var benchSchema = sync.OnceValues(func() (*schema.Schema, error) {
	return schema.Parse("bench.yaml", []byte(benchSchemaYAML))
})

// ============================================================================
// Typed Messages
// ============================================================================

type Severity int32

const (
	SeverityUnspecified Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type SmallMessage struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Metrics struct {
	Count      uint64  `json:"count"`
	Sum        float64 `json:"sum"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	P50        float64 `json:"p50"`
	P95        float64 `json:"p95"`
	P99        float64 `json:"p99"`
	TotalBytes uint64  `json:"total_bytes"`
	ErrorCount uint32  `json:"error_count"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Event struct {
	ID        string            `json:"id"`
	Timestamp int64             `json:"timestamp"`
	Severity  Severity          `json:"severity"`
	Source    string            `json:"source"`
	Tags      []string          `json:"tags"`
	Attrs     map[string]string `json:"attrs"`
	Values    []float64         `json:"values"`
	Origin    *Point            `json:"origin,omitempty"`
}

type Batch struct {
	ID     string  `json:"id"`
	Events []Event `json:"events"`
}

func opt(n int, extra ...any) []serial.FieldOption {
	return []serial.FieldOption{serial.Optional(), num(n, extra...)}
}

func num(n int, extra ...any) serial.FieldOption {
	return serial.Annotate(append([]any{protoserial.ProtoNumber(n)}, extra...)...)
}

var (
	smallMessageSerializer = serial.NewStruct("SmallMessage",
		serial.FieldOf("id", serial.Int64, func(m *SmallMessage) int64 { return m.ID }, func(m *SmallMessage, v int64) { m.ID = v }, opt(1)...),
		serial.FieldOf("name", serial.String, func(m *SmallMessage) string { return m.Name }, func(m *SmallMessage, v string) { m.Name = v }, opt(2)...),
		serial.FieldOf("active", serial.Bool, func(m *SmallMessage) bool { return m.Active }, func(m *SmallMessage, v bool) { m.Active = v }, opt(3)...),
	)

	metricsSerializer = serial.NewStruct("Metrics",
		serial.FieldOf("count", serial.Uint64, func(m *Metrics) uint64 { return m.Count }, func(m *Metrics, v uint64) { m.Count = v }, opt(1)...),
		serial.FieldOf("sum", serial.Float64, func(m *Metrics) float64 { return m.Sum }, func(m *Metrics, v float64) { m.Sum = v }, opt(2)...),
		serial.FieldOf("min", serial.Float64, func(m *Metrics) float64 { return m.Min }, func(m *Metrics, v float64) { m.Min = v }, opt(3)...),
		serial.FieldOf("max", serial.Float64, func(m *Metrics) float64 { return m.Max }, func(m *Metrics, v float64) { m.Max = v }, opt(4)...),
		serial.FieldOf("avg", serial.Float64, func(m *Metrics) float64 { return m.Avg }, func(m *Metrics, v float64) { m.Avg = v }, opt(5)...),
		serial.FieldOf("p50", serial.Float64, func(m *Metrics) float64 { return m.P50 }, func(m *Metrics, v float64) { m.P50 = v }, opt(6)...),
		serial.FieldOf("p95", serial.Float64, func(m *Metrics) float64 { return m.P95 }, func(m *Metrics, v float64) { m.P95 = v }, opt(7)...),
		serial.FieldOf("p99", serial.Float64, func(m *Metrics) float64 { return m.P99 }, func(m *Metrics, v float64) { m.P99 = v }, opt(8)...),
		serial.FieldOf("total_bytes", serial.Uint64, func(m *Metrics) uint64 { return m.TotalBytes }, func(m *Metrics, v uint64) { m.TotalBytes = v }, opt(9)...),
		serial.FieldOf("error_count", serial.Uint32, func(m *Metrics) uint32 { return m.ErrorCount }, func(m *Metrics, v uint32) { m.ErrorCount = v }, opt(10)...),
	)

	pointSerializer = serial.NewStruct("Point",
		serial.FieldOf("x", serial.Float64, func(m *Point) float64 { return m.X }, func(m *Point, v float64) { m.X = v }, opt(1)...),
		serial.FieldOf("y", serial.Float64, func(m *Point) float64 { return m.Y }, func(m *Point, v float64) { m.Y = v }, opt(2)...),
		serial.FieldOf("z", serial.Float64, func(m *Point) float64 { return m.Z }, func(m *Point, v float64) { m.Z = v }, opt(3)...),
	)

	severitySerializer = serial.EnumOf[Severity](serial.EnumDescriptor("Severity", []serial.EnumEntry{
		{Name: "SEVERITY_UNSPECIFIED"},
		{Name: "SEVERITY_INFO"},
		{Name: "SEVERITY_WARN"},
		{Name: "SEVERITY_ERROR"},
	}))

	eventSerializer = serial.NewStruct("Event",
		serial.FieldOf("id", serial.String, func(m *Event) string { return m.ID }, func(m *Event, v string) { m.ID = v }, opt(1)...),
		serial.FieldOf("timestamp", serial.Int64, func(m *Event) int64 { return m.Timestamp }, func(m *Event, v int64) { m.Timestamp = v },
			opt(2, protoserial.ProtoType(protoserial.IntegerFixed))...),
		serial.FieldOf("severity", severitySerializer, func(m *Event) Severity { return m.Severity }, func(m *Event, v Severity) { m.Severity = v }, opt(3)...),
		serial.FieldOf("source", serial.String, func(m *Event) string { return m.Source }, func(m *Event, v string) { m.Source = v }, opt(4)...),
		serial.FieldOf("tags", serial.ListOf[string](serial.String), func(m *Event) []string { return m.Tags }, func(m *Event, v []string) { m.Tags = v }, num(5)),
		serial.FieldOf("attrs", serial.MapOf[string, string](serial.String, serial.String),
			func(m *Event) map[string]string { return m.Attrs }, func(m *Event, v map[string]string) { m.Attrs = v }, num(6)),
		serial.FieldOf("values", serial.ListOf[float64](serial.Float64), func(m *Event) []float64 { return m.Values }, func(m *Event, v []float64) { m.Values = v },
			num(7, protoserial.ProtoPacked{})),
		serial.FieldOf("origin", serial.Ptr[Point](pointSerializer), func(m *Event) *Point { return m.Origin }, func(m *Event, v *Point) { m.Origin = v }, num(8)),
	)

	batchSerializer = serial.NewStruct("Batch",
		serial.FieldOf("id", serial.String, func(m *Batch) string { return m.ID }, func(m *Batch, v string) { m.ID = v }, opt(1)...),
		serial.FieldOf("events", serial.ListOf[Event](eventSerializer), func(m *Batch) []Event { return m.Events }, func(m *Batch, v []Event) { m.Events = v }, num(2)),
	)
)

// ============================================================================
// Test Data Construction
// ============================================================================

func makeSmallMessage() SmallMessage {
	return SmallMessage{ID: 12345, Name: "test-item", Active: true}
}

func makeMetrics() Metrics {
	return Metrics{
		Count:      1000000,
		Sum:        12345678.90,
		Min:        0.001,
		Max:        99999.99,
		Avg:        12345.67,
		P50:        10000.0,
		P95:        50000.0,
		P99:        90000.0,
		TotalBytes: 1073741824,
		ErrorCount: 42,
	}
}

// makeEvent never returns SeverityUnspecified: schema records hold enum
// names and write the first value even when it is the default.
func makeEvent(i int) Event {
	e := Event{
		ID:        fmt.Sprintf("evt-%06d", i),
		Timestamp: 1705900800123 + int64(i),
		Severity:  Severity(i%3 + 1),
		Source:    "api-gateway",
		Tags:      []string{"prod", "us-west-2", "canary"},
		Attrs:     map[string]string{"user": "u-42", "route": "/v1/items", "status": "200"},
		Values:    []float64{12.5, 99.9, 0.25, float64(i)},
	}
	if i%2 == 0 {
		e.Origin = &Point{X: 123.456, Y: 789.012, Z: 345.678}
	}
	return e
}

func makeBatch(n int) Batch {
	b := Batch{ID: fmt.Sprintf("batch-%d", n), Events: make([]Event, n)}
	for i := range b.Events {
		b.Events[i] = makeEvent(i + 1)
	}
	return b
}

// ============================================================================
// Backends
// ============================================================================

type codec struct {
	encode func() ([]byte, error)
	decode func([]byte) error
}

// fixture holds one message prepared for every backend.
type fixture struct {
	protoserial codec
	schema      codec
	protobuf    codec
	json        codec

	msg *dynamicpb.Message
}

func newFixture[T any](tb testing.TB, message string, ser serial.Serializer, v T) *fixture {
	tb.Helper()
	s, err := benchSchema()
	require.NoError(tb, err)
	jsonData, err := json.Marshal(v)
	require.NoError(tb, err)

	var generic any
	require.NoError(tb, json.Unmarshal(jsonData, &generic))
	rec, err := schema.Coerce(s, message, generic)
	require.NoError(tb, err)
	recSer, err := schema.Build(s, message)
	require.NoError(tb, err)

	fd, err := schema.FileDescriptor(s)
	require.NoError(tb, err)
	md := fd.Messages().ByName(protoreflect.Name(message))
	msg := dynamicpb.NewMessage(md)
	require.NoError(tb, protojson.Unmarshal(jsonData, msg))

	return &fixture{
		protoserial: codec{
			encode: func() ([]byte, error) { return protoserial.Marshal(ser, v) },
			decode: func(data []byte) error {
				_, err := protoserial.Unmarshal[T](ser, data)
				return err
			},
		},
		schema: codec{
			encode: func() ([]byte, error) { return protoserial.Default.Encode(recSer, rec) },
			decode: func(data []byte) error {
				_, err := protoserial.Default.Decode(recSer, data)
				return err
			},
		},
		protobuf: codec{
			encode: func() ([]byte, error) { return proto.Marshal(msg) },
			decode: func(data []byte) error { return proto.Unmarshal(data, dynamicpb.NewMessage(md)) },
		},
		json: codec{
			encode: func() ([]byte, error) { return json.Marshal(v) },
			decode: func(data []byte) error {
				var out T
				return json.Unmarshal(data, &out)
			},
		},
		msg: msg,
	}
}

func smallFixture(tb testing.TB) *fixture {
	return newFixture(tb, "SmallMessage", smallMessageSerializer, makeSmallMessage())
}

func metricsFixture(tb testing.TB) *fixture {
	return newFixture(tb, "Metrics", metricsSerializer, makeMetrics())
}

func eventFixture(tb testing.TB) *fixture {
	return newFixture(tb, "Event", eventSerializer, makeEvent(2))
}

func batch100Fixture(tb testing.TB) *fixture {
	return newFixture(tb, "Batch", batchSerializer, makeBatch(100))
}

func batch1000Fixture(tb testing.TB) *fixture {
	return newFixture(tb, "Batch", batchSerializer, makeBatch(1000))
}

var fixtures = []struct {
	name string
	make func(testing.TB) *fixture
}{
	{"SmallMessage", smallFixture},
	{"Metrics", metricsFixture},
	{"Event", eventFixture},
	{"Batch100", batch100Fixture},
	{"Batch1000", batch1000Fixture},
}

func benchEncode(b *testing.B, c codec) {
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := c.encode(); err != nil {
			b.Fatal(err)
		}
	}
}

func benchDecode(b *testing.B, c codec) {
	data, err := c.encode()
	require.NoError(b, err)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := c.decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// SmallMessage Benchmarks
// ============================================================================

func BenchmarkSmallMessage_Protoserial_Encode(b *testing.B) {
	benchEncode(b, smallFixture(b).protoserial)
}

func BenchmarkSmallMessage_Protoserial_Decode(b *testing.B) {
	benchDecode(b, smallFixture(b).protoserial)
}

func BenchmarkSmallMessage_Schema_Encode(b *testing.B) { benchEncode(b, smallFixture(b).schema) }
func BenchmarkSmallMessage_Schema_Decode(b *testing.B) { benchDecode(b, smallFixture(b).schema) }

func BenchmarkSmallMessage_Protobuf_Encode(b *testing.B) { benchEncode(b, smallFixture(b).protobuf) }
func BenchmarkSmallMessage_Protobuf_Decode(b *testing.B) { benchDecode(b, smallFixture(b).protobuf) }

func BenchmarkSmallMessage_JSON_Encode(b *testing.B) { benchEncode(b, smallFixture(b).json) }
func BenchmarkSmallMessage_JSON_Decode(b *testing.B) { benchDecode(b, smallFixture(b).json) }

// ============================================================================
// Metrics Benchmarks
// ============================================================================

func BenchmarkMetrics_Protoserial_Encode(b *testing.B) { benchEncode(b, metricsFixture(b).protoserial) }
func BenchmarkMetrics_Protoserial_Decode(b *testing.B) { benchDecode(b, metricsFixture(b).protoserial) }

func BenchmarkMetrics_Schema_Encode(b *testing.B) { benchEncode(b, metricsFixture(b).schema) }
func BenchmarkMetrics_Schema_Decode(b *testing.B) { benchDecode(b, metricsFixture(b).schema) }

func BenchmarkMetrics_Protobuf_Encode(b *testing.B) { benchEncode(b, metricsFixture(b).protobuf) }
func BenchmarkMetrics_Protobuf_Decode(b *testing.B) { benchDecode(b, metricsFixture(b).protobuf) }

func BenchmarkMetrics_JSON_Encode(b *testing.B) { benchEncode(b, metricsFixture(b).json) }
func BenchmarkMetrics_JSON_Decode(b *testing.B) { benchDecode(b, metricsFixture(b).json) }

// ============================================================================
// Event Benchmarks
// ============================================================================

func BenchmarkEvent_Protoserial_Encode(b *testing.B) { benchEncode(b, eventFixture(b).protoserial) }
func BenchmarkEvent_Protoserial_Decode(b *testing.B) { benchDecode(b, eventFixture(b).protoserial) }

func BenchmarkEvent_Schema_Encode(b *testing.B) { benchEncode(b, eventFixture(b).schema) }
func BenchmarkEvent_Schema_Decode(b *testing.B) { benchDecode(b, eventFixture(b).schema) }

func BenchmarkEvent_Protobuf_Encode(b *testing.B) { benchEncode(b, eventFixture(b).protobuf) }
func BenchmarkEvent_Protobuf_Decode(b *testing.B) { benchDecode(b, eventFixture(b).protobuf) }

func BenchmarkEvent_JSON_Encode(b *testing.B) { benchEncode(b, eventFixture(b).json) }
func BenchmarkEvent_JSON_Decode(b *testing.B) { benchDecode(b, eventFixture(b).json) }

// ============================================================================
// Batch Benchmarks
// ============================================================================

func BenchmarkBatch100_Protoserial_Encode(b *testing.B) { benchEncode(b, batch100Fixture(b).protoserial) }
func BenchmarkBatch100_Protoserial_Decode(b *testing.B) { benchDecode(b, batch100Fixture(b).protoserial) }

func BenchmarkBatch100_Schema_Encode(b *testing.B) { benchEncode(b, batch100Fixture(b).schema) }
func BenchmarkBatch100_Schema_Decode(b *testing.B) { benchDecode(b, batch100Fixture(b).schema) }

func BenchmarkBatch100_Protobuf_Encode(b *testing.B) { benchEncode(b, batch100Fixture(b).protobuf) }
func BenchmarkBatch100_Protobuf_Decode(b *testing.B) { benchDecode(b, batch100Fixture(b).protobuf) }

func BenchmarkBatch100_JSON_Encode(b *testing.B) { benchEncode(b, batch100Fixture(b).json) }
func BenchmarkBatch100_JSON_Decode(b *testing.B) { benchDecode(b, batch100Fixture(b).json) }

func BenchmarkBatch1000_Protoserial_Encode(b *testing.B) {
	benchEncode(b, batch1000Fixture(b).protoserial)
}

func BenchmarkBatch1000_Protoserial_Decode(b *testing.B) {
	benchDecode(b, batch1000Fixture(b).protoserial)
}

func BenchmarkBatch1000_Schema_Encode(b *testing.B) { benchEncode(b, batch1000Fixture(b).schema) }
func BenchmarkBatch1000_Schema_Decode(b *testing.B) { benchDecode(b, batch1000Fixture(b).schema) }

func BenchmarkBatch1000_Protobuf_Encode(b *testing.B) { benchEncode(b, batch1000Fixture(b).protobuf) }
func BenchmarkBatch1000_Protobuf_Decode(b *testing.B) { benchDecode(b, batch1000Fixture(b).protobuf) }

func BenchmarkBatch1000_JSON_Encode(b *testing.B) { benchEncode(b, batch1000Fixture(b).json) }
func BenchmarkBatch1000_JSON_Decode(b *testing.B) { benchDecode(b, batch1000Fixture(b).json) }

// ============================================================================
// Agreement and Size Comparison Tests
// ============================================================================

// TestBackendsAgree checks that the benchmarks compare equal work: every
// binary backend produces the bytes of the official runtime and reads the
// others' output.
func TestBackendsAgree(t *testing.T) {
	for _, tt := range fixtures {
		t.Run(tt.name, func(t *testing.T) {
			fx := tt.make(t)
			want, err := proto.MarshalOptions{Deterministic: true}.Marshal(fx.msg)
			require.NoError(t, err)

			typed, err := fx.protoserial.encode()
			require.NoError(t, err)
			assert.Equal(t, want, typed, "typed serializer")

			records, err := fx.schema.encode()
			require.NoError(t, err)
			assert.Equal(t, want, records, "schema records")

			assert.NoError(t, fx.protoserial.decode(want))
			assert.NoError(t, fx.schema.decode(want))
			assert.NoError(t, fx.protobuf.decode(typed))
		})
	}
}

func TestTypedRoundTrip(t *testing.T) {
	batch := makeBatch(10)
	data, err := protoserial.Marshal(batchSerializer, batch)
	require.NoError(t, err)
	back, err := protoserial.Unmarshal[Batch](batchSerializer, data)
	require.NoError(t, err)
	assert.Equal(t, batch, back)
}

func TestEncodedSizes(t *testing.T) {
	t.Log("\n=== Encoded Size Comparison ===")
	t.Log("| Message       | Protoserial | Protobuf | JSON    | PS/PB   | JSON/PB |")
	t.Log("|---------------|-------------|----------|---------|---------|---------|")

	for _, tt := range fixtures {
		fx := tt.make(t)
		psData, err := fx.protoserial.encode()
		if err != nil {
			t.Errorf("%s: protoserial encode failed: %v", tt.name, err)
			continue
		}
		pbData, err := fx.protobuf.encode()
		if err != nil {
			t.Errorf("%s: protobuf encode failed: %v", tt.name, err)
			continue
		}
		jsonData, err := fx.json.encode()
		if err != nil {
			t.Errorf("%s: json encode failed: %v", tt.name, err)
			continue
		}

		psPbRatio := float64(len(psData)) / float64(len(pbData))
		jsonPbRatio := float64(len(jsonData)) / float64(len(pbData))

		t.Logf("| %-13s | %11d | %8d | %7d | %6.2fx | %6.2fx |",
			tt.name, len(psData), len(pbData), len(jsonData), psPbRatio, jsonPbRatio)
	}
}
