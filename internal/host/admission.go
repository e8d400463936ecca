package host

import (
	"context"
	"time"
)

// beginInference reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (h *Host) beginInference(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context.
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(h.cfg.MaxWait)
	defer timer.Stop()
	select {
	case h.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, busyError{}
	}

	// Wait to acquire the single in-flight slot.
	acquired := false
	defer func() {
		if !acquired {
			<-h.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(h.cfg.MaxWait)
	defer timer2.Stop()
	select {
	case h.genCh <- struct{}{}:
		acquired = true
		return func() { <-h.genCh; <-h.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, busyError{}
	}
}
