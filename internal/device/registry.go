package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the in-memory view of the device catalogue. It loads
// once from the repository at startup and keeps itself and the store
// in step on every mutation. All methods are safe for concurrent use;
// returned devices are copies.
type Registry struct {
	repo Repository

	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry creates a registry over the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		devices: make(map[string]Device),
	}
}

// Load populates the cache from the repository. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading device catalogue: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]Device, len(devices))
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return nil
}

// Get returns the device with the given ID.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// List returns every catalogued device sorted by name.
func (r *Registry) List() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListEnabled returns the devices the monitor should poll.
func (r *Registry) ListEnabled() []Device {
	all := r.List()
	out := all[:0]
	for _, d := range all {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of catalogued devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Create validates and persists a new device, then caches it. A
// missing ID is minted; a missing probe defaults to the heartbeat
// prober.
func (r *Registry) Create(ctx context.Context, d Device) (Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if strings.TrimSpace(d.Probe) == "" {
		d.Probe = ProbeHeartbeat
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := d.Validate(); err != nil {
		return Device{}, err
	}

	if err := r.repo.Create(ctx, &d); err != nil {
		return Device{}, err
	}

	r.mu.Lock()
	r.devices[d.ID] = d
	r.mu.Unlock()

	return d, nil
}

// Update validates and persists changes to an existing device.
func (r *Registry) Update(ctx context.Context, d Device) (Device, error) {
	if err := d.Validate(); err != nil {
		return Device{}, err
	}

	r.mu.RLock()
	existing, ok := r.devices[d.ID]
	r.mu.RUnlock()
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, d.ID)
	}

	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()

	if err := r.repo.Update(ctx, &d); err != nil {
		return Device{}, err
	}

	r.mu.Lock()
	r.devices[d.ID] = d
	r.mu.Unlock()

	return d, nil
}

// Delete removes a device from the store and the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.devices, id)
	r.mu.Unlock()

	return nil
}
