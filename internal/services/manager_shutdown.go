package services

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops accepting traffic, closes the websocket connections,
// stops the background components and releases the backends. It waits for
// the components until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	group, cancel := m.group, m.cancel
	m.mu.Unlock()

	var errs []error

	if m.srv != nil {
		m.srv.SetServing(false)
	}
	if m.hub != nil {
		m.hub.Close()
	}
	if m.srv != nil && group != nil {
		if err := m.srv.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if group != nil {
		cancel()
		done := make(chan error, 1)
		go func() { done <- group.Wait() }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			m.logger.Warn("Timeout waiting for background tasks")
			errs = append(errs, fmt.Errorf("background tasks did not stop: %w", ctx.Err()))
		}
	}

	if err := m.release(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Shutdown finished with errors", "error", err)
		return err
	}
	m.logger.Info("Shutdown complete")
	return nil
}
