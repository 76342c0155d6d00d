package libvirt

import (
	"context"
	"fmt"

	golibvirt "github.com/digitalocean/go-libvirt"
)

func (r *Runtime) StartUnit(ctx context.Context, id string) error {
	return r.withDomain(ctx, id, func(client *golibvirt.Libvirt, dom golibvirt.Domain) error {
		if err := client.DomainCreate(dom); err != nil {
			return fmt.Errorf("DomainCreate %s: %w", id, err)
		}
		return nil
	})
}

// StopUnit requests a guest shutdown; it does not wait for the domain to
// power off.
func (r *Runtime) StopUnit(ctx context.Context, id string) error {
	return r.withDomain(ctx, id, func(client *golibvirt.Libvirt, dom golibvirt.Domain) error {
		if err := client.DomainShutdown(dom); err != nil {
			return fmt.Errorf("DomainShutdown %s: %w", id, err)
		}
		return nil
	})
}

// RestartUnit reboots a running domain and starts a stopped one.
func (r *Runtime) RestartUnit(ctx context.Context, id string) error {
	return r.withDomain(ctx, id, func(client *golibvirt.Libvirt, dom golibvirt.Domain) error {
		state, _, err := client.DomainGetState(dom, 0)
		if err != nil {
			return fmt.Errorf("DomainGetState %s: %w", id, err)
		}
		if state != domainStateRunning {
			if err := client.DomainCreate(dom); err != nil {
				return fmt.Errorf("DomainCreate %s: %w", id, err)
			}
			return nil
		}
		if err := client.DomainReboot(dom, 0); err != nil {
			return fmt.Errorf("DomainReboot %s: %w", id, err)
		}
		return nil
	})
}

func (r *Runtime) withDomain(ctx context.Context, id string, fn func(*golibvirt.Libvirt, golibvirt.Domain) error) error {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return err
	}
	dom, err := lookup(client, id)
	if err != nil {
		return err
	}
	if err := fn(client, dom); err != nil {
		return err
	}
	r.logger.Info("domain action applied", "domain", id)
	return nil
}
