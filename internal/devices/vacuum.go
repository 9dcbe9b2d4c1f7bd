package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/client"
	"sharkninja-client/internal/logging"
)

// ErrReadOnlyProperty indicates a write was attempted on a telemetry
// property. The rejection happens locally, before anything goes on the wire.
var ErrReadOnlyProperty = errors.New("property is read-only")

// PropertyAPI is the slice of the device client a vacuum needs.
type PropertyAPI interface {
	ListDevices(ctx context.Context) ([]client.Device, error)
	GetProperties(ctx context.Context, dsn string, names []string) (map[string]client.PropertyState, error)
	SetProperty(ctx context.Context, dsn, name string, value interface{}) error
	GetMetadata(ctx context.Context, dsn string) (map[string]interface{}, error)
}

// Vacuum is one Shark robot on the account. It caches the last fetched
// property map; Update refreshes the cache and Set* writes through it.
//
// A Vacuum belongs to the session that listed it and is not safe for
// concurrent use.
type Vacuum struct {
	api    PropertyAPI
	device client.Device

	properties map[string]client.PropertyState
	logger     *logrus.Entry
}

// NewVacuum binds a vacuum to the device client that will carry its calls.
func NewVacuum(api PropertyAPI, device client.Device, logger *logrus.Logger) *Vacuum {
	return &Vacuum{
		api:        api,
		device:     device,
		properties: make(map[string]client.PropertyState),
		logger: logging.NewComponentLogger(logger, "vacuum").
			WithField("dsn", device.DSN),
	}
}

// DSN returns the device serial number.
func (v *Vacuum) DSN() string { return v.device.DSN }

// Name returns the product name, falling back to the DSN when the listing
// carried none.
func (v *Vacuum) Name() string {
	if v.device.ProductName != "" {
		return v.device.ProductName
	}
	return "Shark Vacuum " + v.device.DSN
}

// OEMModel returns the OEM model number from the device listing.
func (v *Vacuum) OEMModel() string { return v.device.OEMModel }

// Update refreshes the cached property map from the service. With names set,
// only those properties are fetched and merged into the cache; without, the
// whole map is replaced.
func (v *Vacuum) Update(ctx context.Context, names ...string) error {
	properties, err := v.api.GetProperties(ctx, v.device.DSN, names)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		v.properties = properties
	} else {
		for name, state := range properties {
			v.properties[name] = state
		}
	}

	v.logger.WithField("properties", len(properties)).Debug("Device state updated")
	return nil
}

// Property returns the cached value of a property and whether it is known.
func (v *Vacuum) Property(name string) (interface{}, bool) {
	state, ok := v.properties[name]
	if !ok {
		return nil, false
	}
	return state.Value, true
}

// Properties returns a copy of the cached property values.
func (v *Vacuum) Properties() map[string]interface{} {
	values := make(map[string]interface{}, len(v.properties))
	for name, state := range v.properties {
		values[name] = state.Value
	}
	return values
}

// SetProperty writes one property on the device and updates the cache on
// success. Writes to telemetry properties fail with ErrReadOnlyProperty
// without touching the network.
func (v *Vacuum) SetProperty(ctx context.Context, name string, value interface{}) error {
	if !Settable(name) {
		return fmt.Errorf("%s: %w", name, ErrReadOnlyProperty)
	}

	if err := v.api.SetProperty(ctx, v.device.DSN, name, value); err != nil {
		return err
	}

	v.properties[name] = client.PropertyState{Value: value}
	return nil
}

// Metadata fetches the device's metadata record.
func (v *Vacuum) Metadata(ctx context.Context) (map[string]interface{}, error) {
	return v.api.GetMetadata(ctx, v.device.DSN)
}

// OperatingMode returns the cached operating mode.
func (v *Vacuum) OperatingMode() (OperatingMode, bool) {
	val, ok := v.intProperty(PropOperatingMode)
	return OperatingMode(val), ok
}

// SetOperatingMode commands the robot's activity.
func (v *Vacuum) SetOperatingMode(ctx context.Context, mode OperatingMode) error {
	return v.SetProperty(ctx, PropOperatingMode, int(mode))
}

// Clean starts a cleaning mission.
func (v *Vacuum) Clean(ctx context.Context) error {
	return v.SetOperatingMode(ctx, OperatingModeStart)
}

// Pause pauses the current mission.
func (v *Vacuum) Pause(ctx context.Context) error {
	return v.SetOperatingMode(ctx, OperatingModePause)
}

// Stop stops the current mission.
func (v *Vacuum) Stop(ctx context.Context) error {
	return v.SetOperatingMode(ctx, OperatingModeStop)
}

// ReturnToBase sends the robot back to its dock.
func (v *Vacuum) ReturnToBase(ctx context.Context) error {
	return v.SetOperatingMode(ctx, OperatingModeReturn)
}

// PowerMode returns the cached suction level.
func (v *Vacuum) PowerMode() (PowerMode, bool) {
	val, ok := v.intProperty(PropPowerMode)
	return PowerMode(val), ok
}

// SetPowerMode sets the robot's suction level.
func (v *Vacuum) SetPowerMode(ctx context.Context, mode PowerMode) error {
	return v.SetProperty(ctx, PropPowerMode, int(mode))
}

// FindDevice makes the robot chirp so it can be located.
func (v *Vacuum) FindDevice(ctx context.Context) error {
	return v.SetProperty(ctx, PropFindDevice, 1)
}

// BatteryLevel returns the cached battery charge percentage.
func (v *Vacuum) BatteryLevel() (int, bool) {
	return v.intProperty(PropBatteryCapacity)
}

// Recharging reports whether the robot paused a mission to recharge.
func (v *Vacuum) Recharging() bool {
	val, ok := v.intProperty(PropRechargingToResume)
	return ok && val != 0
}

// ErrorText returns the human-readable form of the cached error code. An
// empty string means no error is reported.
func (v *Vacuum) ErrorText() string {
	code, ok := v.intProperty(PropErrorCode)
	if !ok {
		return ""
	}
	return ErrorMessage(code)
}

// intProperty reads a cached property as an integer. JSON numbers arrive as
// float64; wire values written locally may be int.
func (v *Vacuum) intProperty(name string) (int, bool) {
	state, ok := v.properties[name]
	if !ok {
		return 0, false
	}
	switch val := state.Value.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// GetVacuums lists the account's devices and wraps each in a Vacuum. With
// update set, every vacuum's property cache is filled before returning.
func GetVacuums(ctx context.Context, api PropertyAPI, logger *logrus.Logger, update bool) ([]*Vacuum, error) {
	records, err := api.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	vacuums := make([]*Vacuum, 0, len(records))
	for _, device := range records {
		v := NewVacuum(api, device, logger)
		if update {
			if err := v.Update(ctx); err != nil {
				return nil, fmt.Errorf("failed to update %s: %w", device.DSN, err)
			}
		}
		vacuums = append(vacuums, v)
	}
	return vacuums, nil
}
