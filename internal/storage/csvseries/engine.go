package csvseries

import (
	"context"
	"sync"

	"github.com/csf1lab/labmonitor/internal/types"
)

// StartStorageEngine creates a goroutine loop to receive readings from the
// distributor and append them to the CSV tree
func (s *Store) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	s.logger.Info("starting CSV storage engine...")
	readingChan := make(chan types.Reading, 10)
	go s.processReadings(ctx, wg, readingChan)
	return readingChan
}

func (s *Store) processReadings(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.Reading) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-rchan:
			if err := s.Append(r.Category, r.Time, r.Fields); err != nil {
				// Failed appends are logged and dropped; the loop keeps
				// serving subsequent readings.
				s.logger.Errorf("could not store %s reading: %v", r.Category, err)
			}
		case <-ctx.Done():
			s.logger.Info("cancellation request received. Cancelling readings processor.")
			return
		}
	}
}
