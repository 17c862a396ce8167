package service

import (
	"context"

	"github.com/okian/judgeboard/internal/adapters/realtime"
	"github.com/okian/judgeboard/internal/domain/batch"
	"github.com/okian/judgeboard/internal/domain/model"
)

// Batches is the batch manager as the HTTP API sees it. A transition
// replaces the live state, which clears judge presence, so connected judges
// are reported online again afterwards.
type Batches struct {
	*batch.Manager
	reg *realtime.Registry
}

// Apply runs a named transition and resyncs judge presence.
func (b Batches) Apply(ctx context.Context, id, action string) (model.Batch, error) {
	out, err := b.Manager.Apply(id, action)
	if err != nil {
		return out, err
	}
	b.reg.Resync(ctx)
	return out, nil
}

// Batches returns the batch manager bound to this service's registry.
func (s *Service) Batches() Batches {
	return Batches{Manager: s.batches, reg: s.reg}
}
