package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Body{},
	&BodySample{},
	&RenderRun{},
}

// Body is an imported trajectory. Samples are stored in BodySample rows.
type Body struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name   string `json:"name" gorm:"size:128;uniqueIndex:idx_body_name"`
	Source string `json:"source" gorm:"size:255"` // file the body was imported from
	Format string `json:"format" gorm:"size:16"`  // dat, ocap
	Color  string `json:"color" gorm:"size:9"`    // optional default colour, "#rrggbb"

	SampleCount int       `json:"sampleCount"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`

	// AnnotationLabels lists the labels of the annotation columns, in order.
	AnnotationLabels datatypes.JSON `json:"annotationLabels"`

	Samples []BodySample `json:"-" gorm:"foreignKey:BodyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Body) TableName() string {
	return "bodies"
}

// BodySample is one timestamped position of a body.
type BodySample struct {
	BodyID uint      `json:"bodyId" gorm:"primaryKey;autoIncrement:false"`
	Seq    int       `json:"seq" gorm:"primaryKey;autoIncrement:false"`
	Time   time.Time `json:"time" gorm:"index:idx_body_sample_time"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Z      float64   `json:"z"`

	// Values holds the annotation values for this sample, aligned with
	// Body.AnnotationLabels. Null when the body has no annotations.
	Values datatypes.JSON `json:"values"`
}

func (*BodySample) TableName() string {
	return "body_samples"
}

// Render run states.
const (
	RunRunning   = "running"
	RunDone      = "done"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// RenderRun tracks one render from start to finish.
type RenderRun struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Scene       string     `json:"scene" gorm:"size:255"`
	Output      string     `json:"output" gorm:"size:255"`
	FramesTotal int        `json:"framesTotal"`
	FramesDone  int        `json:"framesDone"`
	Status      string     `json:"status" gorm:"size:16;index:idx_render_run_status"`
	Error       string     `json:"error,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

func (*RenderRun) TableName() string {
	return "render_runs"
}
