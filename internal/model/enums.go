package model

// JobStatus is the lifecycle status of a job as reported by the processing service
// and as tracked by the client-side controller.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further automatic transition follows s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusCancelled
}

// OutputKind names a downloadable artifact of a finished job
type OutputKind string

const (
	OutputMIDI     OutputKind = "midi"
	OutputMusicXML OutputKind = "musicxml"
	OutputLilyPond OutputKind = "lilypond"
	OutputPDF      OutputKind = "pdf"
	OutputVocals   OutputKind = "vocals"
	OutputDrums    OutputKind = "drums"
	OutputBass     OutputKind = "bass"
	OutputOther    OutputKind = "other"
)

var ValidOutputKinds = []OutputKind{
	OutputMIDI, OutputMusicXML, OutputLilyPond, OutputPDF,
	OutputVocals, OutputDrums, OutputBass, OutputOther,
}

// IsStem reports whether k is a separated instrument stem.
func (k OutputKind) IsStem() bool {
	switch k {
	case OutputVocals, OutputDrums, OutputBass, OutputOther:
		return true
	}
	return false
}

// FileName is the artifact's file name inside a job's output directory.
func (k OutputKind) FileName() string {
	switch k {
	case OutputMIDI:
		return "transcribed.mid"
	case OutputMusicXML:
		return "score.musicxml"
	case OutputLilyPond:
		return "score.ly"
	case OutputPDF:
		return "score.pdf"
	}
	return string(k) + ".wav"
}

func (k OutputKind) ContentType() string {
	switch k {
	case OutputMIDI:
		return "audio/midi"
	case OutputMusicXML:
		return "application/vnd.recordare.musicxml+xml"
	case OutputLilyPond:
		return "text/x-lilypond"
	case OutputPDF:
		return "application/pdf"
	}
	return "audio/wav"
}

// ParseOutputKind returns the kind named by s.
func ParseOutputKind(s string) (OutputKind, bool) {
	for _, k := range ValidOutputKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Accepted upload extensions
var AllowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".mp4":  true,
	".mov":  true,
}
