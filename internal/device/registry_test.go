package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeRepo is an in-memory Repository for registry tests.
type fakeRepo struct {
	devices map[string]Device
	listErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devices: make(map[string]Device)}
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return &d, nil
}

func (f *fakeRepo) List(context.Context) ([]Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, d *Device) error {
	if _, exists := f.devices[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID)
	}
	f.devices[d.ID] = *d
	return nil
}

func (f *fakeRepo) Update(_ context.Context, d *Device) error {
	if _, exists := f.devices[d.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, d.ID)
	}
	f.devices[d.ID] = *d
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, exists := f.devices[id]; !exists {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	delete(f.devices, id)
	return nil
}

func TestRegistry_CreateMintsIDAndDefaults(t *testing.T) {
	reg := NewRegistry(newFakeRepo())

	created, err := reg.Create(context.Background(), Device{
		Kind: "camera",
		Name: "Front Door Camera",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() did not mint an ID")
	}
	if created.Probe != ProbeHeartbeat {
		t.Errorf("Probe = %q, want default %q", created.Probe, ProbeHeartbeat)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	got, err := reg.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Front Door Camera" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestRegistry_CreateRejectsInvalid(t *testing.T) {
	reg := NewRegistry(newFakeRepo())

	tests := []struct {
		name   string
		device Device
	}{
		{"empty name", Device{Kind: "camera"}},
		{"empty kind", Device{Name: "Camera"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Create(context.Background(), tt.device); !errors.Is(err, ErrInvalidDevice) {
				t.Errorf("Create() error = %v, want ErrInvalidDevice", err)
			}
		})
	}
}

func TestRegistry_LoadPopulatesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.devices["d1"] = Device{ID: "d1", Kind: "plug", Name: "B Plug", Probe: ProbeHeartbeat, Enabled: true}
	repo.devices["d2"] = Device{ID: "d2", Kind: "plug", Name: "A Plug", Probe: ProbeHeartbeat, Enabled: false}

	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	all := reg.List()
	if len(all) != 2 || all[0].Name != "A Plug" {
		t.Errorf("List() = %+v, want sorted by name", all)
	}

	enabled := reg.ListEnabled()
	if len(enabled) != 1 || enabled[0].ID != "d1" {
		t.Errorf("ListEnabled() = %+v, want only d1", enabled)
	}
}

func TestRegistry_LoadError(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("disk on fire")

	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); err == nil {
		t.Error("Load() = nil, want error")
	}
}

func TestRegistry_UpdatePreservesCreatedAt(t *testing.T) {
	reg := NewRegistry(newFakeRepo())
	ctx := context.Background()

	created, err := reg.Create(ctx, Device{Kind: "camera", Name: "Cam"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := reg.Update(ctx, Device{
		ID:    created.ID,
		Kind:  "camera",
		Name:  "Renamed Cam",
		Probe: ProbeHeartbeat,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if updated.Name != "Renamed Cam" {
		t.Errorf("Name = %q", updated.Name)
	}
}

func TestRegistry_UpdateMissing(t *testing.T) {
	reg := NewRegistry(newFakeRepo())

	_, err := reg.Update(context.Background(), Device{
		ID: "ghost", Kind: "plug", Name: "Ghost", Probe: ProbeHeartbeat,
	})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	reg := NewRegistry(newFakeRepo())
	ctx := context.Background()

	created, err := reg.Create(ctx, Device{Kind: "plug", Name: "Plug"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := reg.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := reg.Get(created.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrDeviceNotFound", err)
	}
	if err := reg.Delete(ctx, created.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}
}
