package ask

import (
	"fmt"
	"time"
)

// Turn is one prior message in a conversation, oldest first. Roles other than
// "user" and "assistant" are carried but ignored by the generation backend.
type Turn struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Pipeline stages, used to tag errors with where the pipeline gave up.
const (
	StageRewrite  = "rewrite"
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageGenerate = "generate"
)

// PipelineError wraps a failure with the pipeline stage that produced it.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
