package handlers

import (
	"context"

	"imgdb/internal/database"
	"imgdb/internal/indexer"
)

// Pipeline is the part of the indexer served over HTTP.
type Pipeline interface {
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
	Stats(ctx context.Context) (database.Stats, error)
	TriggerRun() error
}

type Handlers struct {
	pipeline Pipeline
}

func New(pipeline Pipeline) *Handlers {
	return &Handlers{pipeline: pipeline}
}
