package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Start runs the background components and the servers. It returns once
// the matching engine receives cluster traffic and the node reports
// serving, or with the error of the first component that failed.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.funnel == nil {
		m.mu.Unlock()
		return errors.New("services not initialized")
	}
	if m.group != nil {
		m.mu.Unlock()
		return errors.New("services already started")
	}
	// Components outlive the start context; Shutdown stops them.
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, runCtx := errgroup.WithContext(base)
	m.group, m.runCtx, m.cancel = group, runCtx, cancel
	m.mu.Unlock()

	group.Go(func() error {
		if err := m.engine.Run(runCtx); err != nil {
			return fmt.Errorf("matching engine: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return m.dispatcher.Run(runCtx)
	})
	if m.cfg.Validation.Watch {
		group.Go(func() error {
			if err := m.validator.Watch(runCtx, m.cfg.Validation.SchemaFile); err != nil {
				return fmt.Errorf("validation watcher: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		if err := m.srv.Start(runCtx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	select {
	case <-m.engine.Ready():
	case <-runCtx.Done():
		return fmt.Errorf("failed to start services: %w", group.Wait())
	case <-ctx.Done():
		return ctx.Err()
	}

	m.srv.SetServing(true)
	m.logger.Info("Node started",
		"node", m.engine.NodeID(),
		"host", m.cfg.Server.Host,
		"httpPort", m.cfg.Server.HTTPPort,
		"grpcPort", m.cfg.Server.GRPCPort,
	)
	return nil
}
