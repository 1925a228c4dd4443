package etl

// Stage names one of the four pipeline components.
type Stage string

const (
	StageMerge  Stage = "merge"
	StageEnrich Stage = "enrich"
	StageIndex  Stage = "index"
	StageLoad   Stage = "load"
)

// Stages lists the components in execution order.
var Stages = []Stage{StageMerge, StageEnrich, StageIndex, StageLoad}

// Artifact is the handle one stage hands to the next: the stage that wrote
// it, the fixed path it lives at, and how many rows it holds.
type Artifact struct {
	Stage Stage  `json:"stage"`
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
}

// Outputs are the two final files written by the loader.
type Outputs struct {
	Parquet Artifact `json:"parquet"`
	CSV     Artifact `json:"csv"`
}
