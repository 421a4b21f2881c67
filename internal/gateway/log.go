// Package gateway contains the restriction gateways the lock machine drives.
package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/models"
)

// Log only records what would be enforced. It never fails.
type Log struct {
	log *zap.Logger
}

// NewLog creates a dry-run gateway.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (g *Log) Apply(_ context.Context, selection models.Selection) error {
	g.log.Info("restrictions applied", zap.Int("selection_bytes", len(selection)))
	return nil
}

func (g *Log) Clear(context.Context) error {
	g.log.Info("restrictions cleared")
	return nil
}
