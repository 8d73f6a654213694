package model

// PipelineStage is one step of the processing pipeline. Progress is the value
// reported while the stage runs.
type PipelineStage struct {
	Name     string
	Progress int
	Step     string
}

// PipelineStages lists the processing steps in order. A job whose last stage has
// finished is reported as completed with progress 100.
var PipelineStages = []PipelineStage{
	{Name: "convert", Progress: 10, Step: "Converting format"},
	{Name: "analyze", Progress: 25, Step: "Analyzing audio"},
	{Name: "transcribe", Progress: 40, Step: "Transcribing notes"},
	{Name: "musicxml", Progress: 60, Step: "Generating MusicXML"},
	{Name: "engrave", Progress: 70, Step: "Engraving score (LilyPond)"},
	{Name: "separate", Progress: 85, Step: "Separating instruments"},
	{Name: "finalize", Progress: 95, Step: "Finalizing"},
}

const StepCompleted = "Completed"
