package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultShutdownTimeout = 60 * time.Second

func (lsa *LoadoutSyncAgent) shutdown(timeout time.Duration, serveErr <-chan error) error {
	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		lsa.wait.Wait()
		lsa.engine.Close()
		lsa.refresher.Wait()
	}()

	var errs []error
	select {
	case <-done:
	case <-shutdown.Done():
		errs = append(errs, fmt.Errorf("background work still running after %s", timeout))
	}

	select {
	case err := <-serveErr:
		errs = append(errs, err)
	default:
	}

	if err := lsa.sc.Cleanup(shutdown); err != nil {
		errs = append(errs, fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	if err := lsa.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}

	return errors.Join(errs...)
}
