package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agroqc/internal/blob"
	"agroqc/internal/codegen"
	"agroqc/internal/core"
	"agroqc/pkg/domain"
)

// chdir moves into an empty directory so no stray agroqc.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "agroqc" {
		t.Fatalf("expected default name, got %q", cfg.Name)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.ShutdownTimeout != 10*time.Second || !cfg.Server.Compress {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Storage.SQLitePath != "agroqc.db" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverFilesystem || cfg.Blob.FSRoot != "artifacts" {
		t.Fatalf("unexpected blob defaults: %+v", cfg.Blob)
	}
	if cfg.Export.QueueSize != 32 {
		t.Fatalf("expected queue size 32, got %d", cfg.Export.QueueSize)
	}
	if got := cfg.Sensors.Limits(); got != domain.DefaultSensorLimits() {
		t.Fatalf("expected default sensor limits, got %+v", got)
	}
	if len(cfg.Codes) != len(codegen.DefaultLayouts()) {
		t.Fatalf("expected a layout per entity, got %v", cfg.Codes)
	}
	if cfg.Codes[string(domain.EntityAlert)] != "timestamp" || cfg.Codes[string(domain.EntityBatch)] != "date" {
		t.Fatalf("unexpected code layouts: %v", cfg.Codes)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("AGROQC_NAME", "citrus-north")
	t.Setenv("AGROQC_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("AGROQC_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("AGROQC_LOG_FORMAT", "console")
	t.Setenv("AGROQC_STORAGE_DRIVER", "memory")
	t.Setenv("AGROQC_BLOB_DRIVER", "s3")
	t.Setenv("AGROQC_BLOB_S3_BUCKET", "qc-artifacts")
	t.Setenv("AGROQC_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("AGROQC_SENSORS_TEMPERATURE_C_MAX", "10")
	t.Setenv("AGROQC_CODES_BATCH", "timestamp")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "citrus-north" {
		t.Fatalf("expected name override, got %q", cfg.Name)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Fatalf("server overrides not applied: %+v", cfg.Server)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("expected console format, got %s", cfg.Log.Format)
	}
	if cfg.Storage.Driver != core.StorageMemory {
		t.Fatalf("expected memory storage, got %s", cfg.Storage.Driver)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "qc-artifacts" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("blob overrides not applied: %+v", cfg.Blob)
	}
	if got := cfg.Sensors.Limits().TemperatureC; got.Min != 2 || got.Max != 10 {
		t.Fatalf("expected temperature band 2..10, got %+v", got)
	}
	opts, err := cfg.CodeOptions()
	if err != nil {
		t.Fatalf("code options: %v", err)
	}
	gen := codegen.New(opts...)
	if gen.Layout(domain.EntityBatch) != codegen.LayoutTimestamp {
		t.Fatalf("expected timestamp batch codes, got %s", gen.Layout(domain.EntityBatch))
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdir(t)
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yaml := `
server:
  addr: ":7070"
storage:
  driver: postgres
  postgres_dsn: postgres://qc@localhost/qc
sensors:
  ph:
    min: 3.5
    max: 4.5
`
	if err := os.WriteFile(filepath.Join(dir, "configs", "agroqc.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Storage.Driver != core.StoragePostgres {
		t.Fatalf("file values not applied: %+v %+v", cfg.Server, cfg.Storage)
	}
	if got := cfg.Sensors.Limits().PH; got.Min != 3.5 || got.Max != 4.5 {
		t.Fatalf("expected ph band, got %+v", got)
	}

	// Environment wins over the file.
	t.Setenv("AGROQC_SERVER_ADDR", ":6060")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Addr != ":6060" {
		t.Fatalf("expected env to override file, got %s", cfg.Server.Addr)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	dir := chdir(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"AGROQC_LOG_LEVEL": "verbose"}, "Level"},
		{"storage driver", map[string]string{"AGROQC_STORAGE_DRIVER": "oracle"}, "storage driver"},
		{"postgres dsn", map[string]string{"AGROQC_STORAGE_DRIVER": "postgres"}, "postgres_dsn"},
		{"blob driver", map[string]string{"AGROQC_BLOB_DRIVER": "ftp"}, "blob driver"},
		{"s3 bucket", map[string]string{"AGROQC_BLOB_DRIVER": "s3"}, "bucket"},
		{"inverted band", map[string]string{"AGROQC_SENSORS_HUMIDITY_PCT_MAX": "50"}, "Max"},
		{"queue size", map[string]string{"AGROQC_EXPORT_QUEUE_SIZE": "0"}, "QueueSize"},
		{"code layout", map[string]string{"AGROQC_CODES_PRODUCT": "weekly"}, "codes.product"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
