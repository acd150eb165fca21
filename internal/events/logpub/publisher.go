// Package logpub is the event publisher used when no broker is configured:
// it writes each event to the log instead.
package logpub

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
)

type Publisher struct {
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(_ context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p.logger.Info("event published",
		zap.String("key", key),
		zap.ByteString("payload", data),
	)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
