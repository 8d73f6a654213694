package handler

import (
	"bytes"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/jobcontrol"
	"github.com/scoreapp/score/internal/model"
)

func TestEndToEnd_ControllerOverHTTP(t *testing.T) {
	env := newTestEnv(t, true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go env.app.Listener(ln)
	defer env.app.Shutdown()

	transport, err := client.NewTransport(&config.TransportConfig{
		Mode:    client.ModeHTTP,
		BaseURL: "http://" + ln.Addr().String(),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := transport.Health(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	controller := jobcontrol.New(transport, jobcontrol.WithPollInterval(10*time.Millisecond))
	audio := bytes.Repeat([]byte{7}, 64<<10)
	err = controller.Submit(client.File{
		Name: "song.wav",
		Size: int64(len(audio)),
		Body: bytes.NewReader(audio),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	snap, err := controller.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if snap.State != jobcontrol.StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.State, snap.Job.Error)
	}
	if snap.Result.OriginalFile.Size != int64(len(audio)) {
		t.Errorf("expected size %d, got %d", len(audio), snap.Result.OriginalFile.Size)
	}

	path, err := controller.Download(ctx, model.OutputMusicXML, t.TempDir())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "MusicXML placeholder" {
		t.Errorf("unexpected content %q", data)
	}
}
