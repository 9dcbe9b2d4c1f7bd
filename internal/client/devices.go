package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/auth"
	"sharkninja-client/internal/config"
	"sharkninja-client/internal/logging"
)

// Device is one robot record from the account's device listing.
type Device struct {
	DSN         string `json:"dsn"`
	Key         int64  `json:"key"`
	OEMModel    string `json:"oem_model"`
	ProductName string `json:"product_name"`
}

// PropertyState is one entry in a device's property map.
type PropertyState struct {
	Value interface{} `json:"value"`
}

// propertyUpdate is the body of a property write.
type propertyUpdate struct {
	Value interface{} `json:"value"`
}

// legacyDeviceRecord is the wrapper shape of the legacy Ayla device listing.
type legacyDeviceRecord struct {
	Device Device `json:"device"`
}

// DeviceClient is the typed surface of the robot API. All calls go through
// the dispatcher, so every request carries the session's bearer credential.
type DeviceClient struct {
	dispatcher *Dispatcher
	apiURL     string
	deviceURL  string
	logger     *logrus.Entry
}

// NewDeviceClient creates a device client over the given dispatcher.
func NewDeviceClient(cfg *config.Config, dispatcher *Dispatcher, logger *logrus.Logger) (*DeviceClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &DeviceClient{
		dispatcher: dispatcher,
		apiURL:     cfg.APIURL,
		deviceURL:  cfg.DeviceURL,
		logger:     logging.NewComponentLogger(logger, "devices"),
	}, nil
}

// ListDevices returns the robots on the account. The robots endpoint is
// tried first, falling back to the legacy Ayla listing when it fails. Auth
// failures are not retried against the legacy path; when both paths fail the
// robots failure leads.
func (c *DeviceClient) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := c.listRobots(ctx)
	if err == nil {
		return devices, nil
	}
	if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrTokenRejected) {
		return nil, err
	}

	c.logger.WithError(err).Debug("Robots listing failed, trying legacy device listing")
	devices, legacyErr := c.listLegacyDevices(ctx)
	if legacyErr != nil {
		return nil, errors.Join(err, legacyErr)
	}
	return devices, nil
}

func (c *DeviceClient) listRobots(ctx context.Context) ([]Device, error) {
	resp, err := c.dispatcher.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    c.apiURL + "/v1/robots",
	})
	if err != nil {
		return nil, fmt.Errorf("device listing failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("device listing failed: %w", err)
	}

	var devices []Device
	if err := resp.Decode(&devices); err != nil {
		return nil, fmt.Errorf("failed to parse device listing: %w", err)
	}
	return devices, nil
}

func (c *DeviceClient) listLegacyDevices(ctx context.Context) ([]Device, error) {
	resp, err := c.dispatcher.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    c.deviceURL + "/apiv1/devices.json",
	})
	if err != nil {
		return nil, fmt.Errorf("legacy device listing failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("legacy device listing failed: %w", err)
	}

	var records []legacyDeviceRecord
	if err := resp.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse legacy device listing: %w", err)
	}

	devices := make([]Device, 0, len(records))
	for _, r := range records {
		devices = append(devices, r.Device)
	}
	return devices, nil
}

// GetProperties fetches the device's property map. With names set, only
// those properties are requested.
func (c *DeviceClient) GetProperties(ctx context.Context, dsn string, names []string) (map[string]PropertyState, error) {
	var query url.Values
	if len(names) > 0 {
		query = url.Values{}
		for _, name := range names {
			query.Add("names[]", name)
		}
	}

	resp, err := c.dispatcher.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/robots/%s/properties", c.apiURL, dsn),
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("property fetch failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("property fetch failed: %w", err)
	}

	var properties map[string]PropertyState
	if err := resp.Decode(&properties); err != nil {
		return nil, fmt.Errorf("failed to parse properties response: %w", err)
	}
	return properties, nil
}

// SetProperty writes one property value on the device.
func (c *DeviceClient) SetProperty(ctx context.Context, dsn, name string, value interface{}) error {
	resp, err := c.dispatcher.Send(ctx, &Request{
		Method: http.MethodPut,
		URL:    fmt.Sprintf("%s/v1/robots/%s/properties/%s", c.apiURL, dsn, name),
		Body:   propertyUpdate{Value: value},
	})
	if err != nil {
		return fmt.Errorf("property write failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("property write failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"dsn":      dsn,
		"property": name,
	}).Debug("Property written")
	return nil
}

// GetMetadata fetches the device's metadata record.
func (c *DeviceClient) GetMetadata(ctx context.Context, dsn string) (map[string]interface{}, error) {
	resp, err := c.dispatcher.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/robots/%s/metadata", c.apiURL, dsn),
	})
	if err != nil {
		return nil, fmt.Errorf("metadata fetch failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("metadata fetch failed: %w", err)
	}

	var metadata map[string]interface{}
	if err := resp.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	return metadata, nil
}
