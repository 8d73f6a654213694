package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/scoreapp/score/internal/model"
)

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-client.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return nil
}

func TestHub_BroadcastToJobSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	subscriber := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	other := &Client{JobID: "job-2", Send: make(chan []byte, 4)}
	hub.Register(subscriber)
	hub.Register(other)

	hub.BroadcastProgress(model.StatusResponse{
		JobID:       "job-1",
		Status:      model.JobStatusProcessing,
		Progress:    40,
		CurrentStep: "Transcribing notes",
	})

	var msg model.WSProgressMessage
	if err := json.Unmarshal(receive(t, subscriber), &msg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if msg.Type != model.WSMessageTypeProgress || msg.Progress != 40 || msg.JobID != "job-1" {
		t.Errorf("unexpected message %+v", msg)
	}

	select {
	case <-other.Send:
		t.Error("subscriber of another job received the message")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_ErrorAndComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	client := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	hub.Register(client)

	hub.BroadcastError("job-1", "PIPELINE_FAILED", "disk full")
	var errMsg model.WSErrorMessage
	if err := json.Unmarshal(receive(t, client), &errMsg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if errMsg.Error.Message != "disk full" {
		t.Errorf("unexpected error message %q", errMsg.Error.Message)
	}

	hub.BroadcastComplete("job-1", &model.ProcessingResult{JobID: "job-1"})
	var done model.WSCompleteMessage
	if err := json.Unmarshal(receive(t, client), &done); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if done.Result == nil || done.Result.JobID != "job-1" {
		t.Errorf("unexpected result %+v", done.Result)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	hub.Register(client)
	cancel()
	<-stopped

	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}
	if hub.Register(&Client{JobID: "job-1", Send: make(chan []byte)}) {
		t.Error("expected Register to fail after stop")
	}
	hub.Unregister(client)
}

type fakeSource struct {
	statuses map[string]*model.StatusResponse
	results  map[string]*model.ProcessingResult
}

func (f *fakeSource) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	status, ok := f.statuses[jobID]
	if !ok {
		return nil, errors.New("job not found")
	}
	return status, nil
}

func (f *fakeSource) GetResult(ctx context.Context, jobID string) (*model.ProcessingResult, error) {
	result, ok := f.results[jobID]
	if !ok {
		return nil, errors.New("job not completed")
	}
	return result, nil
}

func TestHub_SubscribeSendsStoredState(t *testing.T) {
	source := &fakeSource{
		statuses: map[string]*model.StatusResponse{
			"done":      {JobID: "done", Status: model.JobStatusCompleted, Progress: 100},
			"failed":    {JobID: "failed", Status: model.JobStatusError, Error: "disk full"},
			"cancelled": {JobID: "cancelled", Status: model.JobStatusCancelled, Error: "job cancelled"},
			"running":   {JobID: "running", Status: model.JobStatusProcessing, Progress: 40},
		},
		results: map[string]*model.ProcessingResult{
			"done": {JobID: "done"},
		},
	}

	tests := []struct {
		jobID    string
		wantType string
		wantCode string
	}{
		{jobID: "done", wantType: model.WSMessageTypeComplete},
		{jobID: "failed", wantType: model.WSMessageTypeError, wantCode: CodeJobFailed},
		{jobID: "cancelled", wantType: model.WSMessageTypeError, wantCode: CodeJobCancelled},
		{jobID: "running", wantType: model.WSMessageTypeProgress},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	hub.SetSource(source)
	go hub.Run(ctx)

	for _, tt := range tests {
		t.Run(tt.jobID, func(t *testing.T) {
			client := &Client{JobID: tt.jobID, Send: make(chan []byte, 4)}
			if !hub.Subscribe(ctx, client) {
				t.Fatal("subscribe failed")
			}
			defer hub.Unregister(client)

			data := receive(t, client)
			var msg model.WSErrorMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("invalid message: %v", err)
			}
			if msg.Type != tt.wantType || msg.JobID != tt.jobID {
				t.Errorf("got %s for %s, want %s", msg.Type, msg.JobID, tt.wantType)
			}
			if msg.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", msg.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHub_SubscribeUnknownJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	hub.SetSource(&fakeSource{})
	go hub.Run(ctx)

	client := &Client{JobID: "missing", Send: make(chan []byte, 4)}
	if !hub.Subscribe(ctx, client) {
		t.Fatal("subscribe failed")
	}

	select {
	case <-client.Send:
		t.Error("unexpected message for unknown job")
	case <-time.After(20 * time.Millisecond):
	}

	hub.BroadcastProgress(model.StatusResponse{JobID: "missing", Status: model.JobStatusQueued})
	receive(t, client)
}
