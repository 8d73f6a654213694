package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/scoreapp/score/internal/model"
)

// AudioAnalysis is what the analysis stage extracts from an audio file.
type AudioAnalysis struct {
	Analysis model.Analysis
	Duration time.Duration
}

// AudioProcessor performs the work behind each pipeline stage. Paths returned
// are inside outDir.
type AudioProcessor interface {
	Convert(ctx context.Context, input, outDir string) (string, error)
	Analyze(ctx context.Context, audio string) (*AudioAnalysis, error)
	Transcribe(ctx context.Context, audio, outDir string) (string, error)
	GenerateMusicXML(ctx context.Context, midi, outDir string) (string, error)
	Engrave(ctx context.Context, musicXML, outDir string) (lilypond, pdf string, err error)
	Separate(ctx context.Context, audio, outDir string) (map[model.OutputKind]string, error)
}

// StubProcessor writes placeholder artifacts and reports a fixed analysis.
// It stands in for the external conversion, transcription, engraving and
// separation tools.
type StubProcessor struct{}

var stubAnalysis = AudioAnalysis{
	Analysis: model.Analysis{
		BPM:           120,
		Key:           "C Major",
		TimeSignature: "4/4",
		AvgPitch:      60,
		PitchRange:    30,
		KeyStability:  0.85,
		ModeMajor:     1,
		NoteDensity:   2.5,
		RhythmVariety: 2,
	},
	Duration: 3*time.Minute + 45*time.Second,
}

func (StubProcessor) Convert(ctx context.Context, input, outDir string) (string, error) {
	out := filepath.Join(outDir, "converted.wav")
	if err := copyFile(input, out); err != nil {
		return "", fmt.Errorf("failed to convert audio: %w", err)
	}
	return out, nil
}

func (StubProcessor) Analyze(ctx context.Context, audio string) (*AudioAnalysis, error) {
	if _, err := os.Stat(audio); err != nil {
		return nil, fmt.Errorf("failed to analyze audio: %w", err)
	}
	a := stubAnalysis
	return &a, nil
}

func (StubProcessor) Transcribe(ctx context.Context, audio, outDir string) (string, error) {
	return writePlaceholder(outDir, model.OutputMIDI, "MIDI placeholder")
}

func (StubProcessor) GenerateMusicXML(ctx context.Context, midi, outDir string) (string, error) {
	return writePlaceholder(outDir, model.OutputMusicXML, "MusicXML placeholder")
}

func (StubProcessor) Engrave(ctx context.Context, musicXML, outDir string) (string, string, error) {
	ly, err := writePlaceholder(outDir, model.OutputLilyPond, "LilyPond placeholder")
	if err != nil {
		return "", "", err
	}
	pdf, err := writePlaceholder(outDir, model.OutputPDF, "PDF placeholder")
	if err != nil {
		return "", "", err
	}
	return ly, pdf, nil
}

func (StubProcessor) Separate(ctx context.Context, audio, outDir string) (map[model.OutputKind]string, error) {
	stems := make(map[model.OutputKind]string)
	for _, kind := range model.ValidOutputKinds {
		if !kind.IsStem() {
			continue
		}
		path, err := writePlaceholder(outDir, kind, "Audio placeholder")
		if err != nil {
			return nil, err
		}
		stems[kind] = path
	}
	return stems, nil
}

func writePlaceholder(outDir string, kind model.OutputKind, content string) (string, error) {
	path := filepath.Join(outDir, kind.FileName())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
