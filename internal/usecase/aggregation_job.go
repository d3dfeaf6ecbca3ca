package usecase

import (
	"context"

	applogger "MarketPull/pkg/logger"
	"MarketPull/pkg/queue"
)

// AggregationJobType is the queue message type for manual pipeline runs.
const AggregationJobType = "aggregation.run"

// AggregationTrigger is the payload attached to manual pipeline runs.
type AggregationTrigger struct {
	RequestedAt string `json:"requested_at"`
	Source      string `json:"source"`
}

// AggregationJob runs a full pipeline pass when a trigger message arrives.
// The pipeline mutex serializes it against the scheduled loop.
type AggregationJob struct {
	pipeline *AggregationPipeline
}

func NewAggregationJob(pipeline *AggregationPipeline) *AggregationJob {
	return &AggregationJob{pipeline: pipeline}
}

func (j *AggregationJob) Name() string { return "aggregation-run" }

func (j *AggregationJob) Type() string { return AggregationJobType }

func (j *AggregationJob) Handle(ctx context.Context, payload interface{}) error {
	if trig, err := queue.ParsePayload[AggregationTrigger](payload); err == nil && j.pipeline.l != nil {
		j.pipeline.l.Info("manual aggregation run",
			applogger.String("source", trig.Source),
			applogger.String("requested_at", trig.RequestedAt),
		)
	}
	return j.pipeline.RunOnce(ctx)
}

var _ queue.Job = (*AggregationJob)(nil)
