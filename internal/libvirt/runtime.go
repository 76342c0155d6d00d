package libvirt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"

	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

// allCPUs selects the host-wide aggregate in NodeGetCPUStats.
const allCPUs = -1

// Runtime exposes libvirt domains as monitored units. Domain names are used
// as unit ids.
type Runtime struct {
	conn   *Conn
	logger *slog.Logger

	mu    sync.Mutex
	cores uint32
}

func NewRuntime(conn *Conn, logger *slog.Logger) *Runtime {
	return &Runtime{conn: conn, logger: logger}
}

func (r *Runtime) ListUnits(ctx context.Context, filter model.UnitFilter) ([]model.Unit, error) {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return nil, err
	}

	flags := golibvirt.ConnectListAllDomainsFlags(0)
	if filter.RunningOnly {
		flags = golibvirt.ConnectListDomainsActive
	}
	doms, _, err := client.ConnectListAllDomains(1, flags)
	if err != nil {
		return nil, fmt.Errorf("ConnectListAllDomains: %w", err)
	}

	units := make([]model.Unit, 0, len(doms))
	for _, dom := range doms {
		state, _, stateErr := client.DomainGetState(dom, 0)
		if stateErr != nil {
			r.logger.Debug("domain state unavailable", "domain", dom.Name, "error", stateErr)
			state = -1
		}
		st := uint64(0)
		if state >= 0 {
			st = uint64(state)
		}
		units = append(units, model.Unit{
			ID:      dom.Name,
			Name:    dom.Name,
			UUID:    uuidString(dom.UUID),
			State:   stateName(st),
			Running: state == domainStateRunning,
		})
	}
	return units, nil
}

func (r *Runtime) Snapshot(ctx context.Context, unit model.Unit) (model.Snapshot, error) {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	dom, err := lookup(client, unit.ID)
	if err != nil {
		return model.Snapshot{}, err
	}

	records, err := client.ConnectGetAllDomainStats([]golibvirt.Domain{dom}, statsMask, 0)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("ConnectGetAllDomainStats %s: %w", unit.ID, err)
	}
	if len(records) == 0 {
		return model.Snapshot{}, fmt.Errorf("no stats record for %s", unit.ID)
	}
	stats := parseDomainStats(records[0].Params)
	if !stats.running() {
		return model.Snapshot{}, errdefs.ErrNotRunning
	}

	system, err := systemCounter(client)
	if err != nil {
		return model.Snapshot{}, err
	}
	cores, err := r.hostCores(client)
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		UnitID:        unit.ID,
		UnitName:      dom.Name,
		CPUCounter:    stats.cpuTime,
		SystemCounter: system,
		Cores:         cores,
		MemoryUsage:   stats.memUsed,
		MemoryLimit:   stats.memLimit,
		NetRxBytes:    stats.netRxBytes,
		NetTxBytes:    stats.netTxBytes,
		TakenAt:       time.Now().UTC(),
	}, nil
}

func (r *Runtime) hostCores(client *golibvirt.Libvirt) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cores > 0 {
		return r.cores, nil
	}
	_, _, cpus, _, _, _, _, _, err := client.NodeGetInfo()
	if err != nil {
		return 0, fmt.Errorf("NodeGetInfo: %w", err)
	}
	if cpus <= 0 {
		cpus = 1
	}
	r.cores = uint32(cpus)
	return r.cores, nil
}

// systemCounter asks for the parameter count first, then the values.
func systemCounter(client *golibvirt.Libvirt) (uint64, error) {
	_, nparams, err := client.NodeGetCPUStats(allCPUs, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("NodeGetCPUStats count: %w", err)
	}
	stats, _, err := client.NodeGetCPUStats(allCPUs, nparams, 0)
	if err != nil {
		return 0, fmt.Errorf("NodeGetCPUStats: %w", err)
	}
	if len(stats) == 0 {
		return 0, fmt.Errorf("empty node cpu stats")
	}
	return sumCPUStats(stats), nil
}

func lookup(client *golibvirt.Libvirt, name string) (golibvirt.Domain, error) {
	dom, err := client.DomainLookupByName(name)
	if err != nil {
		if golibvirt.IsNotFound(err) {
			return golibvirt.Domain{}, fmt.Errorf("%w: %s", errdefs.ErrUnitNotFound, name)
		}
		return golibvirt.Domain{}, fmt.Errorf("DomainLookupByName %s: %w", name, err)
	}
	return dom, nil
}
