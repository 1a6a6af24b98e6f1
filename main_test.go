package main

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"

	"cloudnest/pkg/config"
)

func TestNewLoggerTextFormat(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(config.New(), &out)

	logger.Info("CloudNest running on port 4000")
	logger.Debug("hidden")

	if !strings.Contains(out.String(), `msg="CloudNest running on port 4000"`) {
		t.Errorf("Expected text log line, got %s", out.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Errorf("Expected debug output to be filtered at info level, got %s", out.String())
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	cfg := config.New()
	cfg.Set("logging.format", "JSON")
	cfg.Set("logging.level", "debug")

	var out bytes.Buffer
	newLogger(cfg, &out).Debug("Health endpoint accessed")

	if !strings.Contains(out.String(), `"msg":"Health endpoint accessed"`) {
		t.Errorf("Expected JSON debug log line, got %s", out.String())
	}
}

func TestRunFailsWhenPortIsTaken(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	defer occupied.Close()

	t.Setenv("APPLICATION_CONFIGURATION_DIR", t.TempDir())
	t.Setenv("CLOUDNEST_SERVER_PORT", strconv.Itoa(occupied.Addr().(*net.TCPAddr).Port))

	err = run()
	if err == nil {
		t.Fatal("Expected run to fail on an occupied port, got nil")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("Expected bind diagnostic, got: %v", err)
	}
}

func TestRunFailsOnInvalidPort(t *testing.T) {
	t.Setenv("APPLICATION_CONFIGURATION_DIR", t.TempDir())
	t.Setenv("CLOUDNEST_SERVER_PORT", "abc")

	err := run()
	if err == nil {
		t.Fatal("Expected run to fail on a non-numeric port, got nil")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("Expected port diagnostic, got: %v", err)
	}
}
