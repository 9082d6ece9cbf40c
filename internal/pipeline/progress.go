package pipeline

import "context"

// ItemProgress is the position of a lookup stage in its list of keys
type ItemProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressSink receives the progress of a run. Update is called after each
// stage with the stage's index, and during lookup stages with item progress.
type ProgressSink interface {
	Stages(ctx context.Context, names []string) error
	Update(ctx context.Context, stage, total int, item *ItemProgress) error
}

type noProgress struct{}

func (noProgress) Stages(context.Context, []string) error                 { return nil }
func (noProgress) Update(context.Context, int, int, *ItemProgress) error { return nil }

// Discard is a ProgressSink that ignores every update
var Discard ProgressSink = noProgress{}
