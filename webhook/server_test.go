// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Benrobo/nexusai-sub001/dispatch"
	"github.com/Benrobo/nexusai-sub001/engine"
	"github.com/Benrobo/nexusai-sub001/kv"
	"github.com/Benrobo/nexusai-sub001/model"
)

type fakeTurnHandler struct {
	last   engine.TurnRequest
	result engine.TurnResult
}

func (f *fakeTurnHandler) HandleTurn(_ context.Context, req engine.TurnRequest) engine.TurnResult {
	f.last = req
	return f.result
}

func newTestServer(t *testing.T, turns TurnHandler, jobs *dispatch.Dispatcher, limit *RateLimiter) (*httptest.Server, *dispatch.MockPublisher) {
	t.Helper()
	render := &engine.Renderer{
		GatherAction:  "/api/voice/incoming",
		FallbackAudio: "https://cdn.example.com/fallback.mp3",
	}
	publish := dispatch.NewMockPublisher()
	srv := NewServer(turns, jobs, publish, limit, render, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, publish
}

func postVoiceForm(t *testing.T, ts *httptest.Server, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/voice/incoming",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestVoiceWebhookDecodesTwilioForm(t *testing.T) {
	turns := &fakeTurnHandler{result: engine.TurnResult{
		Document: `<Response><Play>https://cdn.example.com/a.mp3</Play></Response>`,
		State:    model.StateListening,
	}}
	ts, _ := newTestServer(t, turns, dispatch.NewDispatcher(nil), nil)

	resp := postVoiceForm(t, ts, url.Values{
		"CallSid":       {"CA12345"},
		"From":          {"+15559998888"},
		"To":            {"+15550001111"},
		"SpeechResult":  {"I need help with my order"},
		"CallerCountry": {"US"},
		"CallerState":   {"CA"},
		"CallerZip":     {"94105"},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("content type = %q, want text/xml", ct)
	}

	want := engine.TurnRequest{
		CallRefID:    "CA12345",
		CallerNumber: "+15559998888",
		CalledNumber: "+15550001111",
		Utterance:    "I need help with my order",
		Region:       model.Region{Country: "US", State: "CA", Zip: "94105"},
	}
	if turns.last != want {
		t.Errorf("decoded request = %+v, want %+v", turns.last, want)
	}
}

func TestVoiceWebhookMissingCallSidStillAnswersTwiML(t *testing.T) {
	turns := &fakeTurnHandler{}
	ts, _ := newTestServer(t, turns, dispatch.NewDispatcher(nil), nil)

	resp := postVoiceForm(t, ts, url.Values{"From": {"+15559998888"}})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for a bad delivery", resp.StatusCode)
	}
	if turns.last.CallRefID != "" {
		t.Error("engine must not be consulted without a call reference id")
	}
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "<Response>") {
		t.Errorf("expected a TwiML body, got %q", body.String())
	}
}

func TestVoiceWebhookRateLimitHoldsCall(t *testing.T) {
	store := kv.NewMemoryStore(kv.NewAutoClock())
	limit := NewRateLimiter(store, 20*time.Second, 1)
	turns := &fakeTurnHandler{result: engine.TurnResult{
		Document: `<Response><Play>https://cdn.example.com/a.mp3</Play></Response>`,
		State:    model.StateListening,
	}}
	ts, _ := newTestServer(t, turns, dispatch.NewDispatcher(nil), limit)

	form := url.Values{"CallSid": {"CA1"}}
	postVoiceForm(t, ts, form)

	turns.last = engine.TurnRequest{}
	resp := postVoiceForm(t, ts, form)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if turns.last.CallRefID != "" {
		t.Error("rate-limited request must not reach the engine")
	}
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "<Response>") {
		t.Errorf("expected a hold TwiML body, got %q", body.String())
	}
}

func TestJobDeliveryRoutesToHandler(t *testing.T) {
	jobs := dispatch.NewDispatcher(zaptest.NewLogger(t))
	var got json.RawMessage
	jobs.Register(model.JobSendSMS, func(_ context.Context, payload json.RawMessage) error {
		got = payload
		return nil
	})
	ts, _ := newTestServer(t, &fakeTurnHandler{}, jobs, nil)

	job := model.BackgroundJob{
		ID:      model.NewJobID(),
		Type:    model.JobSendSMS,
		Payload: json.RawMessage(`{"to":"+15551112222","body":"hi"}`),
	}
	data, _ := json.Marshal(job)
	resp, err := http.Post(ts.URL+"/api/jobs/process", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(got) != `{"to":"+15551112222","body":"hi"}` {
		t.Errorf("handler payload = %s", got)
	}
}

func TestJobDeliveryFailuresAskForRedelivery(t *testing.T) {
	jobs := dispatch.NewDispatcher(zaptest.NewLogger(t))
	jobs.Register(model.JobSendMail, func(_ context.Context, _ json.RawMessage) error {
		return errors.New("smtp down")
	})
	ts, _ := newTestServer(t, &fakeTurnHandler{}, jobs, nil)

	post := func(body string) int {
		resp, err := http.Post(ts.URL+"/api/jobs/process", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"id":"j1","type":"send-mail","payload":{}}`); code != http.StatusInternalServerError {
		t.Errorf("failing handler: status = %d, want 500", code)
	}
	if code := post(`{"id":"j2","type":"no-such-type","payload":{}}`); code != http.StatusInternalServerError {
		t.Errorf("unknown type: status = %d, want 500", code)
	}
	if code := post(`{not json`); code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", code)
	}
}

func TestProvisionEndpointQueuesJob(t *testing.T) {
	ts, publish := newTestServer(t, &fakeTurnHandler{}, dispatch.NewDispatcher(nil), nil)

	body := `{"agent_id":"agent-1","country":"US","owner_email":"owner@example.com"}`
	resp, err := http.Post(ts.URL+"/api/numbers/provision", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	jobs := publish.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("published %d jobs, want 1", len(jobs))
	}
	if jobs[0].Type != model.JobProvisionNumber {
		t.Errorf("job type = %s", jobs[0].Type)
	}
	if jobs[0].ID == "" {
		t.Error("queued job must carry an id")
	}

	var reply map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply["job_id"] != jobs[0].ID {
		t.Errorf("response job_id = %q, want %q", reply["job_id"], jobs[0].ID)
	}
}

func TestProvisionEndpointRejectsIncompleteOrders(t *testing.T) {
	ts, publish := newTestServer(t, &fakeTurnHandler{}, dispatch.NewDispatcher(nil), nil)

	resp, err := http.Post(ts.URL+"/api/numbers/provision", "application/json",
		strings.NewReader(`{"agent_id":"agent-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(publish.Jobs()) != 0 {
		t.Error("incomplete order must not be queued")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTurnHandler{}, dispatch.NewDispatcher(nil), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
