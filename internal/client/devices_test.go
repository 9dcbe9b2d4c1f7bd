package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sharkninja-client/internal/auth"
	"sharkninja-client/internal/config"
	"sharkninja-client/internal/logging"
)

func newTestDeviceClient(t *testing.T, serverURL string, guard *fakeGuard) *DeviceClient {
	t.Helper()

	logger := logging.Initialize("debug")
	dispatcher, err := NewDispatcher(guard, logger)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.APIURL = serverURL
	cfg.DeviceURL = serverURL

	client, err := NewDeviceClient(cfg, dispatcher, logger)
	if err != nil {
		t.Fatalf("NewDeviceClient() error = %v", err)
	}
	return client
}

func TestListDevices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Device{
			{DSN: "AC000W000000001", Key: 42, OEMModel: "RV1001AE", ProductName: "Shark IQ Robot"},
			{DSN: "AC000W000000002", Key: 43, OEMModel: "RV2001", ProductName: "Upstairs Robot"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("ListDevices() returned %d devices, want 2", len(devices))
	}
	if devices[0].DSN != "AC000W000000001" {
		t.Errorf("DSN = %q, want %q", devices[0].DSN, "AC000W000000001")
	}
	if devices[0].ProductName != "Shark IQ Robot" {
		t.Errorf("ProductName = %q, want %q", devices[0].ProductName, "Shark IQ Robot")
	}
}

func TestListDevicesLegacyFallback(t *testing.T) {
	legacyCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/apiv1/devices.json", func(w http.ResponseWriter, r *http.Request) {
		legacyCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"device": {"dsn": "AC000W000000001", "key": 42, "oem_model": "RV1001AE", "product_name": "Shark IQ Robot"}}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	if legacyCalls != 1 {
		t.Errorf("legacy endpoint called %d times, want 1", legacyCalls)
	}
	if len(devices) != 1 {
		t.Fatalf("ListDevices() returned %d devices, want 1", len(devices))
	}
	if devices[0].DSN != "AC000W000000001" {
		t.Errorf("DSN = %q, want %q", devices[0].DSN, "AC000W000000001")
	}
}

func TestListDevicesBothPathsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/apiv1/devices.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	_, err := client.ListDevices(context.Background())
	if err == nil {
		t.Fatal("ListDevices() expected error when both paths fail")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("ListDevices() error = %v, want StatusError", err)
	}
	// The robots failure leads the joined error.
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("leading StatusError.StatusCode = %d, want %d", statusErr.StatusCode, http.StatusNotFound)
	}
}

func TestListDevicesNoFallbackOnAuthFailure(t *testing.T) {
	legacyCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/apiv1/devices.json", func(w http.ResponseWriter, r *http.Request) {
		legacyCalls++
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	guard := &fakeGuard{token: "revoked"}
	client := newTestDeviceClient(t, server.URL, guard)

	_, err := client.ListDevices(context.Background())
	if !errors.Is(err, auth.ErrTokenRejected) {
		t.Fatalf("ListDevices() error = %v, want ErrTokenRejected", err)
	}
	if legacyCalls != 0 {
		t.Errorf("legacy endpoint tried %d times after auth failure, want 0", legacyCalls)
	}
	if guard.invalidated != 1 {
		t.Errorf("Invalidate() called %d times, want 1", guard.invalidated)
	}
}

func TestGetProperties(t *testing.T) {
	var gotNames []string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots/AC000W000000001/properties", func(w http.ResponseWriter, r *http.Request) {
		gotNames = r.URL.Query()["names[]"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Battery_Capacity": {"value": 87},
			"Operating_Mode": {"value": 2}
		}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	props, err := client.GetProperties(context.Background(), "AC000W000000001", []string{"Battery_Capacity", "Operating_Mode"})
	if err != nil {
		t.Fatalf("GetProperties() error = %v", err)
	}

	if len(gotNames) != 2 || gotNames[0] != "Battery_Capacity" || gotNames[1] != "Operating_Mode" {
		t.Errorf("names[] query = %v, want the requested property names", gotNames)
	}

	battery, ok := props["Battery_Capacity"]
	if !ok {
		t.Fatal("Battery_Capacity missing from response")
	}
	if got, want := battery.Value, float64(87); got != want {
		t.Errorf("Battery_Capacity = %v, want %v", got, want)
	}
}

func TestGetPropertiesAllNames(t *testing.T) {
	var sawQuery bool
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots/AC000W000000001/properties", func(w http.ResponseWriter, r *http.Request) {
		sawQuery = len(r.URL.Query()["names[]"]) > 0
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"RSSI": {"value": -61}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	props, err := client.GetProperties(context.Background(), "AC000W000000001", nil)
	if err != nil {
		t.Fatalf("GetProperties() error = %v", err)
	}
	if sawQuery {
		t.Error("names[] sent despite requesting all properties")
	}
	if _, ok := props["RSSI"]; !ok {
		t.Error("RSSI missing from response")
	}
}

func TestSetProperty(t *testing.T) {
	var gotMethod string
	var gotBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots/AC000W000000001/properties/Operating_Mode", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	if err := client.SetProperty(context.Background(), "AC000W000000001", "Operating_Mode", 2); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want %q", gotMethod, http.MethodPut)
	}
	if got, want := gotBody["value"], float64(2); got != want {
		t.Errorf("value = %v, want %v", got, want)
	}
}

func TestSetPropertyServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots/AC000W000000001/properties/Operating_Mode", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "value out of range"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	err := client.SetProperty(context.Background(), "AC000W000000001", "Operating_Mode", 99)
	if err == nil {
		t.Fatal("SetProperty() expected error for rejected write")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SetProperty() error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusError.StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/robots/AC000W000000001/metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model": "RV1001AE", "firmware": "2.4.1"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestDeviceClient(t, server.URL, &fakeGuard{token: "tok"})

	metadata, err := client.GetMetadata(context.Background(), "AC000W000000001")
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if metadata["model"] != "RV1001AE" {
		t.Errorf("model = %v, want %q", metadata["model"], "RV1001AE")
	}
}
