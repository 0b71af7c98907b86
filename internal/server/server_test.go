package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/definitions"
	"github.com/example/message-intake/internal/dispatch"
	"github.com/example/message-intake/internal/mapping"
	"github.com/example/message-intake/internal/models"
	"github.com/example/message-intake/internal/pipeline"
	"github.com/example/message-intake/internal/schema"
	"github.com/example/message-intake/internal/storage"
	"github.com/example/message-intake/internal/transaction"
	"github.com/example/message-intake/internal/util"
)

const validPacs008 = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08"><FIToFICstmrCdtTrf><GrpHdr><MsgId>M1</MsgId></GrpHdr></FIToFICstmrCdtTrf></Document>`

const pacs008XSD = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08"
           elementFormDefault="qualified">
  <xs:element name="Document"/>
</xs:schema>`

const (
	txnInitiated = "b438a9e5-3f0e-4b17-9c60-1f0b6f6cf7d1"
	txnUnknown   = "97c0f4a2-5b7e-4dcb-8a3d-2b9a6f1e0c55"
)

type sink struct {
	mu         sync.Mutex
	deliveries map[string][][]byte
}

func newSink() *sink {
	return &sink{deliveries: make(map[string][][]byte)}
}

func (s *sink) target(name string) dispatch.Deliverer {
	return dispatch.DelivererFunc(func(_ context.Context, payload []byte, _ map[string]string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.deliveries[name] = append(s.deliveries[name], payload)
		return nil
	})
}

func (s *sink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries[name])
}

func (s *sink) last(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads := s.deliveries[name]
	if len(payloads) == 0 {
		return nil
	}
	return payloads[len(payloads)-1]
}

type stack struct {
	txns    *transaction.MemoryStore
	sink    *sink
	httpSrv *httptest.Server
}

// newStack wires the full intake stack with in-memory collaborators and a
// collecting delivery sink behind real registry targets.
func newStack(t *testing.T, cfg Config) *stack {
	t.Helper()

	txns := transaction.NewMemoryStore()
	if _, err := txns.Initiate(context.Background(), txnInitiated); err != nil {
		t.Fatalf("failed to initiate transaction: %v", err)
	}

	blobs := storage.NewMemoryStore()
	if err := blobs.Put(context.Background(), "msg-runtime", "schemas/pacs.008.001.08.xsd", []byte(pacs008XSD)); err != nil {
		t.Fatalf("failed to store schema: %v", err)
	}

	lookup := definitions.NewStaticLookup()
	lookup.Add(models.MessageDefinition{
		Key:         models.VersionKey{UniqueType: "pacs.008", Major: 1, Minor: 8},
		StoragePath: "schemas/pacs.008.001.08.xsd",
	})

	checker, err := schema.NewInvoker(lookup, blobs, "msg-runtime", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build schema invoker: %v", err)
	}

	archiver, err := storage.NewArchiver(blobs, "msg-payloads", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build archiver: %v", err)
	}

	resolver := mapping.NewStaticResolver()
	resolver.AddRule(models.MappingQuery{
		SourceType:  models.SourceTypeMessageIn,
		Source:      models.SourceMessageIn,
		ContentType: "*",
		MessageType: "pacs.008",
	}, "msg-translator")
	resolver.AddRule(models.MappingQuery{
		SourceType:  models.SourceTypeMessageIn,
		Source:      models.SourceMessageOut,
		ContentType: "*",
		MessageType: models.FailureMessageType,
	}, "msg-failure-outbox")

	snk := newSink()
	registry := dispatch.NewRegistry()
	for _, name := range []string{"msg-translator", "msg-failure-outbox"} {
		if err := registry.Register(name, snk.target(name)); err != nil {
			t.Fatalf("failed to register target: %v", err)
		}
	}
	dispatcher, err := dispatch.NewDispatcher(registry, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build dispatcher: %v", err)
	}

	p, err := pipeline.New(txns, archiver, checker, resolver, dispatcher, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	srv, err := New(cfg, p, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	httpSrv := httptest.NewServer(srv.Router())
	t.Cleanup(httpSrv.Close)

	return &stack{txns: txns, sink: snk, httpSrv: httpSrv}
}

type responseBody struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (s *stack) post(t *testing.T, path, transactionID string, body []byte) (int, responseBody) {
	t.Helper()
	return s.postAs(t, path, transactionID, "application/xml", body)
}

func (s *stack) postAs(t *testing.T, path, transactionID, contentType string, body []byte) (int, responseBody) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, s.httpSrv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if transactionID != "" {
		req.Header.Set(HeaderTransactionID, transactionID)
	}

	resp, err := s.httpSrv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var parsed responseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if _, err := util.ParseUUIDv4(parsed.RequestID); err != nil {
		t.Fatalf("request_id %q is not a uuid v4: %v", parsed.RequestID, err)
	}
	return resp.StatusCode, parsed
}

func TestIntakeSuccess(t *testing.T) {
	s := newStack(t, Config{})

	code, body := s.post(t, "/msa/in", txnInitiated, []byte(validPacs008))
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Status != "OK" || body.Message != "Request was received" {
		t.Fatalf("unexpected body: %+v", body)
	}

	record, err := s.txns.Lookup(context.Background(), txnInitiated)
	if err != nil {
		t.Fatalf("failed to look up transaction: %v", err)
	}
	if record.State != models.TransactionReceived {
		t.Fatalf("transaction state is %q, want received", record.State)
	}
	if s.sink.count("msg-translator") != 1 {
		t.Fatal("success target did not receive the message")
	}
	if s.sink.count("msg-failure-outbox") != 0 {
		t.Fatal("failure target must stay silent on success")
	}
}

func TestIntakeMissingBody(t *testing.T) {
	s := newStack(t, Config{})

	code, body := s.post(t, "/msa/in", txnInitiated, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Status != "Rejected" || body.Message != "Missing message body" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestIntakeMissingTransactionHeader(t *testing.T) {
	s := newStack(t, Config{})

	code, body := s.post(t, "/msa/in", "", []byte(validPacs008))
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Status != "Rejected" || body.Message != "Missing X-Transaction-Id HTTP header" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestIntakeUnknownTransaction(t *testing.T) {
	s := newStack(t, Config{})

	// Repeating the identical request must behave identically: 404 both
	// times, one failure notification per attempt, nothing else changed.
	for attempt := 1; attempt <= 2; attempt++ {
		code, body := s.post(t, "/msa/in", txnUnknown, []byte(validPacs008))
		if code != http.StatusNotFound {
			t.Fatalf("attempt %d: unexpected status %d: %+v", attempt, code, body)
		}
		if body.Status != "Rejected" || body.Message != "Could not find such transaction" {
			t.Fatalf("attempt %d: unexpected body: %+v", attempt, body)
		}
		if got := s.sink.count("msg-failure-outbox"); got != attempt {
			t.Fatalf("attempt %d: %d failure notifications delivered, want %d", attempt, got, attempt)
		}
		if got := s.sink.count("msg-translator"); got != 0 {
			t.Fatalf("attempt %d: success target received %d deliveries", attempt, got)
		}
	}
}

func TestIntakeMalformedPayload(t *testing.T) {
	s := newStack(t, Config{})

	code, body := s.post(t, "/msa/in", txnInitiated, []byte("<Document><unclosed"))
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Status != "Rejected" || body.Message != "Received an invalid incoming message" {
		t.Fatalf("unexpected body: %+v", body)
	}

	record, err := s.txns.Lookup(context.Background(), txnInitiated)
	if err != nil {
		t.Fatalf("failed to look up transaction: %v", err)
	}
	if record.State != models.TransactionRejected {
		t.Fatalf("transaction state is %q, want rejected", record.State)
	}
	if s.sink.count("msg-failure-outbox") != 1 {
		t.Fatal("failure notification was not delivered")
	}
}

func TestIntakeUnsupportedContentType(t *testing.T) {
	s := newStack(t, Config{})
	raw := []byte("plain text payload")

	code, body := s.postAs(t, "/msa/in", txnInitiated, "text/plain", raw)
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Status != "Rejected" || body.Message != "Received an invalid incoming message" {
		t.Fatalf("unexpected body: %+v", body)
	}

	record, err := s.txns.Lookup(context.Background(), txnInitiated)
	if err != nil {
		t.Fatalf("failed to look up transaction: %v", err)
	}
	if record.State != models.TransactionRejected {
		t.Fatalf("transaction state is %q, want rejected", record.State)
	}
	if s.sink.count("msg-failure-outbox") != 1 {
		t.Fatal("failure notification was not delivered")
	}
	if string(s.sink.last("msg-failure-outbox")) != string(raw) {
		t.Fatalf("failure notification payload %q, want the received bytes", s.sink.last("msg-failure-outbox"))
	}
}

func TestIntakeInvalidJSONPayload(t *testing.T) {
	s := newStack(t, Config{})
	raw := []byte(`{"Document":`)

	code, body := s.postAs(t, "/msa/in", txnInitiated, "application/json", raw)
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Message != "Received an invalid incoming message" {
		t.Fatalf("unexpected body: %+v", body)
	}
	// The notification carries the bytes that were received, not an empty
	// processed form.
	if string(s.sink.last("msg-failure-outbox")) != string(raw) {
		t.Fatalf("failure notification payload %q, want the received bytes", s.sink.last("msg-failure-outbox"))
	}
}

func TestIntakeBodyTooLarge(t *testing.T) {
	s := newStack(t, Config{MaxBodyBytes: 16})

	code, body := s.post(t, "/msa/in", txnInitiated, []byte(validPacs008))
	if code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}
	if body.Message != "Message body too large" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTrailingSlashRoutesAre404(t *testing.T) {
	s := newStack(t, Config{})

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/msa/in/"},
		{http.MethodGet, "/_healthy/"},
	} {
		req, err := http.NewRequest(tc.method, s.httpSrv.URL+tc.path, bytes.NewReader([]byte(validPacs008)))
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set(HeaderTransactionID, txnInitiated)

		resp, err := s.httpSrv.Client().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s returned %d, want 404", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestHealthyEndpoint(t *testing.T) {
	s := newStack(t, Config{})

	resp, err := s.httpSrv.Client().Get(s.httpSrv.URL + "/_healthy")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var parsed responseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if parsed.Status != "OK" {
		t.Fatalf("unexpected body: %+v", parsed)
	}
	if _, err := util.ParseUUIDv4(parsed.RequestID); err != nil {
		t.Fatalf("request_id %q is not a uuid v4: %v", parsed.RequestID, err)
	}
}

func TestConfigurableIntakePath(t *testing.T) {
	s := newStack(t, Config{IntakePath: "/intake/messages"})

	code, body := s.post(t, "/intake/messages", txnInitiated, []byte(validPacs008))
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %+v", code, body)
	}

	// The default path is gone once a custom one is configured.
	req, err := http.NewRequest(http.MethodPost, s.httpSrv.URL+"/msa/in", bytes.NewReader([]byte(validPacs008)))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := s.httpSrv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("default path returned %d, want 404", resp.StatusCode)
	}
}

func TestNewRequiresPipeline(t *testing.T) {
	if _, err := New(Config{}, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected constructor error")
	}
}
