package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Benrobo/nexusai-sub001/dispatch"
	"github.com/Benrobo/nexusai-sub001/model"
)

func TestDispatcherRoutesByType(t *testing.T) {
	d := dispatch.NewDispatcher(nil)

	var gotPayload string
	d.Register(model.JobSendSMS, func(ctx context.Context, payload json.RawMessage) error {
		gotPayload = string(payload)
		return nil
	})

	job := model.BackgroundJob{
		ID:      model.NewJobID(),
		Type:    model.JobSendSMS,
		Payload: json.RawMessage(`{"to":"+15550001","body":"hi"}`),
	}
	if err := d.Process(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if gotPayload != `{"to":"+15550001","body":"hi"}` {
		t.Errorf("handler got payload %q", gotPayload)
	}
}

func TestDispatcherUnknownType(t *testing.T) {
	d := dispatch.NewDispatcher(nil)
	err := d.Process(context.Background(), model.BackgroundJob{ID: "j1", Type: "mystery"})
	if err == nil {
		t.Fatal("expected error for unregistered job type")
	}
}

func TestDispatcherHandlerErrorPropagates(t *testing.T) {
	d := dispatch.NewDispatcher(nil)
	want := errors.New("mail provider down")
	d.Register(model.JobSendMail, func(ctx context.Context, payload json.RawMessage) error {
		return want
	})

	err := d.Process(context.Background(), model.BackgroundJob{ID: "j1", Type: model.JobSendMail})
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestQueuePublisherPublish(t *testing.T) {
	var gotPath, gotAuth, gotDelay string
	var gotJob model.BackgroundJob

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDelay = r.Header.Get("Upstash-Delay")
		_ = json.NewDecoder(r.Body).Decode(&gotJob)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := dispatch.NewQueuePublisher(srv.URL, "qs-token", "https://voice.example.com/api/jobs/process")
	job := model.BackgroundJob{
		Type:         model.JobSendMail,
		Payload:      json.RawMessage(`{"to":"a@b.c"}`),
		DelaySeconds: 60,
	}
	if err := p.Publish(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if gotPath != "/v2/publish/https://voice.example.com/api/jobs/process" {
		t.Errorf("unexpected publish path %q", gotPath)
	}
	if gotAuth != "Bearer qs-token" {
		t.Errorf("unexpected auth %q", gotAuth)
	}
	if gotDelay != "60s" {
		t.Errorf("unexpected delay header %q", gotDelay)
	}
	if gotJob.Type != model.JobSendMail {
		t.Errorf("unexpected job type %q", gotJob.Type)
	}
	if gotJob.ID == "" {
		t.Error("publish should assign a job id when absent")
	}
}

func TestQueuePublisherQueueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := dispatch.NewQueuePublisher(srv.URL, "bad", "https://voice.example.com/api/jobs/process")
	if err := p.Publish(context.Background(), model.BackgroundJob{Type: model.JobSendSMS}); err == nil {
		t.Fatal("expected error on queue rejection")
	}
}
