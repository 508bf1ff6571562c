package pipeline

import (
	"context"
	"fmt"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// MultiLoader writes each batch to every loader in order and stops at the
// first failure. The first loader is the system of record.
type MultiLoader []BatchLoader

func (m MultiLoader) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	for i, l := range m {
		if err := l.LoadBatch(ctx, readings); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
