package logging

// Canonical field names for structured logging.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldStage     = "stage"

	// Media
	FieldPath       = "path"
	FieldOutput     = "output"
	FieldFrame      = "frame"
	FieldFrames     = "frames"
	FieldFPS        = "fps"
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldReasons    = "reasons"

	// Scenes and clips
	FieldScene = "scene"
	FieldStart = "start"
	FieldEnd   = "end"
)
