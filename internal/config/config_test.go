package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"STORE_ROOT", "IMAGE_SOURCE", "IMAGE_REFRESH_PERIOD", "CAMERA_TIMEOUT", "INFERENCE_TIMEOUT", "HTTP_PORT", "GRPC_PORT", "GEMINI_MODEL", "RABBITMQ_PORT"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Rabbit.Root != "cactus" || c.Rabbit.Port != 1883 {
		t.Errorf("store defaults: %+v", c.Rabbit)
	}
	if c.ImageSource != ImageSourceScript || c.ImageRefreshPeriod != 30*time.Second || c.CameraTimeout != 5*time.Second {
		t.Errorf("image defaults: %s %s %s", c.ImageSource, c.ImageRefreshPeriod, c.CameraTimeout)
	}
	if c.InferenceTimeout != 60*time.Second || c.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("inference defaults: %s %s", c.InferenceTimeout, c.GeminiModel)
	}
	if c.HTTPPort != 8080 || c.GRPCPort != 50051 {
		t.Errorf("ports: %d %d", c.HTTPPort, c.GRPCPort)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("STORE_ROOT", "ficus")
	t.Setenv("IMAGE_SOURCE", "DEVICE")
	t.Setenv("IMAGE_REFRESH_PERIOD", "45")
	t.Setenv("CAMERA_TIMEOUT", "2s")
	t.Setenv("HTTP_PORT", "not-a-number")

	c := FromEnv()
	if c.Rabbit.Root != "ficus" || c.ImageSource != ImageSourceDevice {
		t.Errorf("unexpected %q %q", c.Rabbit.Root, c.ImageSource)
	}
	if c.ImageRefreshPeriod != 45*time.Second || c.CameraTimeout != 2*time.Second {
		t.Errorf("durations: %s %s", c.ImageRefreshPeriod, c.CameraTimeout)
	}
	if c.HTTPPort != 8080 {
		t.Errorf("bad int should fall back to default, got %d", c.HTTPPort)
	}
}

func TestValidate(t *testing.T) {
	c := Config{ImageSource: ImageSourceDevice, CameraIP: "192.168.1.50", GeminiAPIKey: "k", HTTPPort: 1, GRPCPort: 2}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c = Config{ImageSource: "ftp", HTTPPort: 1, GRPCPort: 2}
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "IMAGE_SOURCE") || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected both problems reported, got %v", err)
	}

	c = Config{ImageSource: ImageSourceScript, GeminiAPIKey: "k", HTTPPort: 1, GRPCPort: 2}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "IMAGE_SCRIPT_URL") {
		t.Fatalf("missing script url not reported: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CAMERA_IP=10.0.0.7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CAMERA_IP", "")
	os.Unsetenv("CAMERA_IP")

	c := Load(path)
	if c.CameraIP != "10.0.0.7" {
		t.Fatalf("CameraIP = %q", c.CameraIP)
	}
	os.Unsetenv("CAMERA_IP")
}
