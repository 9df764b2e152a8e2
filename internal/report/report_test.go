package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
	"github.com/jittakal/sockeventwriter/internal/coordinator"
	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/observability"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
)

var (
	started  = time.Date(2025, 3, 24, 7, 24, 31, 0, time.UTC)
	finished = started.Add(2 * time.Second)
)

func sampleResults() []coordinator.TaskResult {
	return []coordinator.TaskResult{
		{
			Identity: "sock0",
			State:    coordinator.StateCompleted,
			Records:  200000,
			Flushes:  2,
			Bytes:    4096,
			AvgRate:  2048,
			PeakRate: 3000,
			Duration: 2 * time.Second,
			Jobs: []coordinator.JobResult{
				{Format: encoder.FormatJSON, Stats: encoder.Stats{Records: 100000, Flushes: 1}, Duration: time.Second},
				{Format: encoder.FormatMsgpack, Stats: encoder.Stats{Records: 100000, Flushes: 1}, Duration: time.Second},
			},
		},
		{
			Identity: "sock1",
			State:    coordinator.StateFailed,
			Records:  10,
			Duration: time.Second,
			Err:      errors.New("broken pipe"),
		},
	}
}

func TestBuild(t *testing.T) {
	r := Build("sockeventwriter", "1.0.0", started, finished, sampleResults())

	if r.RunID == "" {
		t.Error("RunID is empty")
	}
	if r.DurationMs != 2000 {
		t.Errorf("DurationMs = %d, want 2000", r.DurationMs)
	}
	if r.TotalRecords != 200010 || r.TotalBytes != 4096 {
		t.Errorf("totals = %d records, %d bytes", r.TotalRecords, r.TotalBytes)
	}
	if r.Failed != 1 {
		t.Errorf("Failed = %d, want 1", r.Failed)
	}
	if len(r.Endpoints) != 2 {
		t.Fatalf("len(Endpoints) = %d, want 2", len(r.Endpoints))
	}

	ok := r.Endpoints[0]
	if ok.RecordsPerSec != 100000 {
		t.Errorf("RecordsPerSec = %v, want 100000", ok.RecordsPerSec)
	}
	if len(ok.Formats) != 2 || ok.Formats[1].Format != "msgpack" || ok.Formats[1].Flushes != 1 {
		t.Errorf("Formats = %+v", ok.Formats)
	}
	if r.Endpoints[1].Error != "broken pipe" || r.Endpoints[1].State != "failed" {
		t.Errorf("failed endpoint = %+v", r.Endpoints[1])
	}
}

func TestBuild_RunIDsAreUnique(t *testing.T) {
	a := Build("app", "v", started, finished, nil)
	b := Build("app", "v", started, finished, nil)
	if a.RunID == b.RunID {
		t.Errorf("run ids collide: %s", a.RunID)
	}
	if a.Endpoints == nil {
		t.Error("Endpoints should be an empty slice, not nil")
	}
}

func TestRunReport_Event(t *testing.T) {
	r := Build("app", "v", started, finished, sampleResults())

	event, err := r.Event("")
	if err != nil {
		t.Fatalf("Event() error = %v", err)
	}
	if err := event.Validate(); err != nil {
		t.Errorf("event does not validate: %v", err)
	}
	if event.ID() != r.RunID || event.Type() != EventType || event.Source() != EventSource {
		t.Errorf("event attributes = %s %s %s", event.ID(), event.Type(), event.Source())
	}
	if !event.Time().Equal(finished) {
		t.Errorf("event time = %v, want %v", event.Time(), finished)
	}

	var decoded RunReport
	if err := event.DataAs(&decoded); err != nil {
		t.Fatalf("DataAs() error = %v", err)
	}
	if decoded.RunID != r.RunID || len(decoded.Endpoints) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		want     string
	}{
		{"with base", "reports", "reports/dt=2025-03-24/run=abc.json"},
		{"trailing slash", "reports/", "reports/dt=2025-03-24/run=abc.json"},
		{"empty base", "", "dt=2025-03-24/run=abc.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey(tt.basePath, "abc", started); got != tt.want {
				t.Errorf("ObjectKey() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := Build("app", "v", started, finished, sampleResults())
	event, _ := r.Event("")

	if err := NewLogPublisher(zap.New(core)).Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	entries := logs.FilterMessage("Run report").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["eventId"]; got != r.RunID {
		t.Errorf("eventId = %v, want %s", got, r.RunID)
	}
}

func TestFilePublisher(t *testing.T) {
	base := filepath.Join(t.TempDir(), "reports")
	pub, err := NewFilePublisher(dto.FileConfig{BasePath: base}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFilePublisher() error = %v", err)
	}

	r := Build("app", "v", started, finished, sampleResults())
	event, _ := r.Event("")
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	path := filepath.Join(base, "dt=2025-03-24", "run="+r.RunID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	got := cloudevents.NewEvent()
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("envelope does not decode: %v", err)
	}
	if got.ID() != r.RunID || got.Type() != EventType {
		t.Errorf("decoded envelope = %s %s", got.ID(), got.Type())
	}
}

type fakePublisher struct {
	err    error
	events []cloudevents.Event
}

func (f *fakePublisher) Publish(_ context.Context, event cloudevents.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func TestReporter_Publish(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("bucket gone"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics(prometheus.NewRegistry())
			pub := &fakePublisher{err: tt.err}
			reporter := NewReporter(pub, BackendS3, "/test", time.Second, zaptest.NewLogger(t), metrics)

			err := reporter.Publish(context.Background(), Build("app", "v", started, finished, nil))

			if tt.err == nil && err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if tt.err != nil {
				var publishErr *apperrors.PublishError
				if !errors.As(err, &publishErr) || publishErr.Backend != BackendS3 || !errors.Is(err, tt.err) {
					t.Fatalf("Publish() error = %v, want PublishError wrapping %v", err, tt.err)
				}
			}
			if len(pub.events) != 1 || pub.events[0].Source() != "/test" {
				t.Errorf("published events = %v", pub.events)
			}
			if got := testutil.ToFloat64(metrics.ReportsPublished.WithLabelValues(BackendS3, tt.wantStatus)); got != 1 {
				t.Errorf("reports_published{%s} = %v, want 1", tt.wantStatus, got)
			}
		})
	}
}

func TestNewPublisher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     dto.ReportConfig
		wantErr bool
	}{
		{"log", dto.ReportConfig{Backend: BackendLog}, false},
		{"file", dto.ReportConfig{Backend: BackendFile, File: dto.FileConfig{BasePath: t.TempDir()}}, false},
		{"unknown", dto.ReportConfig{Backend: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewPublisher(context.Background(), tt.cfg, zaptest.NewLogger(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPublisher() error = %v, wantErr %v", err, tt.wantErr)
			}
			if pub != nil {
				_ = pub.Close()
			}
		})
	}
}

// stubProducer records messages; unused SyncProducer methods panic through the nil embed.
type stubProducer struct {
	sarama.SyncProducer
	sent   []*sarama.ProducerMessage
	err    error
	closed bool
}

func (s *stubProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	s.sent = append(s.sent, msg)
	return 0, int64(len(s.sent)), s.err
}

func (s *stubProducer) Close() error {
	s.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &stubProducer{}
	pub := newKafkaPublisher(producer, "runs", zaptest.NewLogger(t))

	r := Build("app", "v", started, finished, nil)
	event, _ := r.Event("")
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(producer.sent))
	}

	msg := producer.sent[0]
	if msg.Topic != "runs" {
		t.Errorf("topic = %s, want runs", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != r.RunID {
		t.Errorf("key = %s, want %s", key, r.RunID)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	if headers["ce_type"] != EventType || headers["ce_id"] != r.RunID {
		t.Errorf("headers = %v", headers)
	}

	if err := pub.Close(); err != nil || !producer.closed {
		t.Errorf("Close() error = %v, closed = %v", err, producer.closed)
	}
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	pub := newKafkaPublisher(&stubProducer{err: sarama.ErrOutOfBrokers}, "runs", zaptest.NewLogger(t))
	event, _ := Build("app", "v", started, finished, nil).Event("")

	if err := pub.Publish(context.Background(), event); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Publish() error = %v, want ErrOutOfBrokers", err)
	}
}

func TestNewSaramaConfig(t *testing.T) {
	tests := []struct {
		name          string
		cfg           dto.KafkaReportConfig
		wantErr       bool
		wantSASL      bool
		wantTLS       bool
		wantMechanism sarama.SASLMechanism
	}{
		{name: "plaintext", cfg: dto.KafkaReportConfig{SecurityProtocol: "PLAINTEXT"}},
		{name: "sasl plain", cfg: dto.KafkaReportConfig{SecurityProtocol: "SASL_PLAINTEXT", SASLMechanism: "PLAIN"},
			wantSASL: true, wantMechanism: sarama.SASLTypePlaintext},
		{name: "scram 512 over tls", cfg: dto.KafkaReportConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-512"},
			wantSASL: true, wantTLS: true, wantMechanism: sarama.SASLTypeSCRAMSHA512},
		{name: "msk iam", cfg: dto.KafkaReportConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM",
			AWSMSK: dto.AWSMSKConfig{Enabled: true, Region: "us-east-1"}},
			wantSASL: true, wantTLS: true, wantMechanism: sarama.SASLTypeOAuth},
		{name: "msk iam disabled", cfg: dto.KafkaReportConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM"}, wantErr: true},
		{name: "unknown protocol", cfg: dto.KafkaReportConfig{SecurityProtocol: "QUIC"}, wantErr: true},
		{name: "missing ca file", cfg: dto.KafkaReportConfig{SecurityProtocol: "SSL",
			TLS: dto.TLSConfig{CACertFile: "/nonexistent/ca.pem"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newSaramaConfig(tt.cfg, zaptest.NewLogger(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSaramaConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.Net.SASL.Enable != tt.wantSASL || cfg.Net.TLS.Enable != tt.wantTLS {
				t.Errorf("SASL/TLS = %v/%v, want %v/%v", cfg.Net.SASL.Enable, cfg.Net.TLS.Enable, tt.wantSASL, tt.wantTLS)
			}
			if tt.wantSASL && cfg.Net.SASL.Mechanism != tt.wantMechanism {
				t.Errorf("mechanism = %s, want %s", cfg.Net.SASL.Mechanism, tt.wantMechanism)
			}
		})
	}
}

func TestXDGSCRAMClient(t *testing.T) {
	client := &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
	if err := client.Begin("user", "secret", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	first, err := client.Step("")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(first) == 0 || client.Done() {
		t.Errorf("first message = %q, done = %v", first, client.Done())
	}
}
