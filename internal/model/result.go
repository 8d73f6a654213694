package model

import "time"

// ProcessingResult is the payload of a completed job. It is never modified after
// it has been produced.
type ProcessingResult struct {
	JobID        string       `json:"jobId"`
	OriginalFile OriginalFile `json:"originalFile"`
	Analysis     Analysis     `json:"analysis"`
	Outputs      Outputs      `json:"outputs"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// OriginalFile describes the uploaded source file
type OriginalFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Format   string `json:"format"`
	Duration string `json:"duration"`
}

// Analysis holds the extracted audio features of a job.
type Analysis struct {
	BPM           float64 `json:"bpm"`
	Key           string  `json:"key,omitempty"`
	TimeSignature string  `json:"timeSignature,omitempty"`
	AvgPitch      float64 `json:"avgPitch"`
	PitchRange    float64 `json:"pitchRange"`
	KeyStability  float64 `json:"keyStability"`
	ModeMajor     float64 `json:"modeMajor"`
	NoteDensity   float64 `json:"noteDensity"`
	RhythmVariety float64 `json:"rhythmVariety"`
}

// Features returns the analysis in recommender order.
func (a Analysis) Features() FeatureVector {
	return FeatureVector{
		a.BPM,
		a.AvgPitch,
		a.PitchRange,
		a.KeyStability,
		a.ModeMajor,
		a.NoteDensity,
		a.RhythmVariety,
	}
}

// Outputs maps each output kind to a locator. A nil locator means the output was
// not produced.
type Outputs struct {
	MIDI     *string `json:"midi"`
	MusicXML *string `json:"musicxml"`
	LilyPond *string `json:"lilypond"`
	PDF      *string `json:"pdf"`
	Stems    Stems   `json:"stems"`
}

// Stems holds separated instrument tracks
type Stems struct {
	Vocals *string `json:"vocals"`
	Drums  *string `json:"drums"`
	Bass   *string `json:"bass"`
	Other  *string `json:"other"`
}

// Locator returns the locator for kind, if the output exists.
func (o Outputs) Locator(kind OutputKind) (string, bool) {
	var loc *string
	switch kind {
	case OutputMIDI:
		loc = o.MIDI
	case OutputMusicXML:
		loc = o.MusicXML
	case OutputLilyPond:
		loc = o.LilyPond
	case OutputPDF:
		loc = o.PDF
	case OutputVocals:
		loc = o.Stems.Vocals
	case OutputDrums:
		loc = o.Stems.Drums
	case OutputBass:
		loc = o.Stems.Bass
	case OutputOther:
		loc = o.Stems.Other
	}
	if loc == nil || *loc == "" {
		return "", false
	}
	return *loc, true
}

// Set records a locator for kind.
func (o *Outputs) Set(kind OutputKind, locator string) {
	loc := &locator
	switch kind {
	case OutputMIDI:
		o.MIDI = loc
	case OutputMusicXML:
		o.MusicXML = loc
	case OutputLilyPond:
		o.LilyPond = loc
	case OutputPDF:
		o.PDF = loc
	case OutputVocals:
		o.Stems.Vocals = loc
	case OutputDrums:
		o.Stems.Drums = loc
	case OutputBass:
		o.Stems.Bass = loc
	case OutputOther:
		o.Stems.Other = loc
	}
}
