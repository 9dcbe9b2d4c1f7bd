// Package fakecloud is an in-process stand-in for the SharkNinja cloud,
// used by integration-style tests. It serves the IDP login and refresh
// endpoints, the robots API, and the legacy Ayla device listing.
package fakecloud

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Robot is one device record served by the fake cloud.
type Robot struct {
	DSN         string `json:"dsn"`
	Key         int64  `json:"key"`
	OEMModel    string `json:"oem_model"`
	ProductName string `json:"product_name"`
}

// Cloud is the fake service. Construct it with New, wire it into an
// httptest.Server, and point the client's endpoint config at the server URL.
type Cloud struct {
	mu sync.Mutex

	email    string
	password string

	accessToken  string
	refreshToken string
	expiresIn    int64
	revoked      bool
	legacyOnly   bool

	robots     []Robot
	properties map[string]map[string]interface{}
	metadata   map[string]map[string]interface{}

	loginCalls   int
	refreshCalls int

	router *mux.Router
}

// New creates a fake cloud accepting one account.
func New(email, password string) *Cloud {
	c := &Cloud{
		email:        email,
		password:     password,
		accessToken:  "fake-access-token-1",
		refreshToken: "fake-refresh-token-1",
		expiresIn:    3600,
		properties:   make(map[string]map[string]interface{}),
		metadata:     make(map[string]map[string]interface{}),
		router:       mux.NewRouter(),
	}
	c.setupRoutes()
	return c
}

func (c *Cloud) setupRoutes() {
	c.router.HandleFunc("/v1/login-message-shark", c.handleLogin).Methods(http.MethodPost)
	c.router.HandleFunc("/v1/login-message-shark/refresh", c.handleRefresh).Methods(http.MethodPost)
	c.router.HandleFunc("/v1/robots", c.authorized(c.handleListRobots)).Methods(http.MethodGet)
	c.router.HandleFunc("/v1/robots/{dsn}/properties", c.authorized(c.handleGetProperties)).Methods(http.MethodGet)
	c.router.HandleFunc("/v1/robots/{dsn}/properties/{name}", c.authorized(c.handleSetProperty)).Methods(http.MethodPut)
	c.router.HandleFunc("/v1/robots/{dsn}/metadata", c.authorized(c.handleMetadata)).Methods(http.MethodGet)
	c.router.HandleFunc("/apiv1/devices.json", c.authorized(c.handleLegacyDevices)).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (c *Cloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

// AddRobot registers a device with its initial property values.
func (c *Cloud) AddRobot(robot Robot, properties map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.robots = append(c.robots, robot)
	if properties == nil {
		properties = make(map[string]interface{})
	}
	c.properties[robot.DSN] = properties
	c.metadata[robot.DSN] = map[string]interface{}{
		"dsn":   robot.DSN,
		"model": robot.OEMModel,
	}
}

// Revoke invalidates the current access token server-side, so the next
// authorized call returns 401 even though the client still holds the token.
func (c *Cloud) Revoke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = true
}

// SetLegacyOnly makes the robots listing return 404 so clients must fall
// back to the legacy Ayla device listing.
func (c *Cloud) SetLegacyOnly(legacyOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.legacyOnly = legacyOnly
}

// SetExpiresIn overrides the advertised token lifetime.
func (c *Cloud) SetExpiresIn(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiresIn = seconds
}

// LoginCalls returns how many sign-in requests the cloud has served.
func (c *Cloud) LoginCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginCalls
}

// RefreshCalls returns how many refresh requests the cloud has served.
func (c *Cloud) RefreshCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshCalls
}

// Property returns a device property's current server-side value.
func (c *Cloud) Property(dsn, name string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	props, ok := c.properties[dsn]
	if !ok {
		return nil, false
	}
	value, ok := props[name]
	return value, ok
}

func (c *Cloud) handleLogin(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginCalls++

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Email != c.email || body.Password != c.password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	c.issueTokensLocked(w)
}

func (c *Cloud) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshCalls++

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.RefreshToken != c.refreshToken {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	c.issueTokensLocked(w)
}

// issueTokensLocked rotates the token pair and writes the IDP response.
func (c *Cloud) issueTokensLocked(w http.ResponseWriter) {
	c.revoked = false
	c.accessToken = fmt.Sprintf("fake-access-token-%d", c.loginCalls+c.refreshCalls+1)
	c.refreshToken = fmt.Sprintf("fake-refresh-token-%d", c.loginCalls+c.refreshCalls+1)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":         c.accessToken,
		"refresh_token": c.refreshToken,
		"expires_in":    c.expiresIn,
	})
}

// authorized wraps a handler with bearer token validation.
func (c *Cloud) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		token := c.accessToken
		revoked := c.revoked
		c.mu.Unlock()

		header := r.Header.Get("Authorization")
		if revoked || header != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "invalid or revoked token")
			return
		}
		next(w, r)
	}
}

func (c *Cloud) handleListRobots(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.legacyOnly {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, c.robots)
}

func (c *Cloud) handleLegacyDevices(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]map[string]interface{}, 0, len(c.robots))
	for _, robot := range c.robots {
		records = append(records, map[string]interface{}{"device": robot})
	}
	writeJSON(w, http.StatusOK, records)
}

func (c *Cloud) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dsn := mux.Vars(r)["dsn"]
	props, ok := c.properties[dsn]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	names := r.URL.Query()["names[]"]
	response := make(map[string]map[string]interface{})
	if len(names) == 0 {
		for name, value := range props {
			response[name] = map[string]interface{}{"value": value}
		}
	} else {
		for _, name := range names {
			if value, ok := props[name]; ok {
				response[name] = map[string]interface{}{"value": value}
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (c *Cloud) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vars := mux.Vars(r)
	props, ok := c.properties[vars["dsn"]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	var body struct {
		Value interface{} `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	props[vars["name"]] = body.Value
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": body.Value})
}

func (c *Cloud) handleMetadata(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dsn := mux.Vars(r)["dsn"]
	meta, ok := c.metadata[dsn]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
