package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"SERVICE_NAME":       "test-mint",
				"BATCH_SIZE":         "5000",
				"BATCH_WORKERS":      "4",
				"TARGET_MINING_TIME": "10s",
			},
			wantErr: false,
		},
		{
			name: "invalid batch size",
			envVars: map[string]string{
				"BATCH_SIZE": "-1",
			},
			wantErr: true,
		},
		{
			name: "invalid target mining time",
			envVars: map[string]string{
				"TARGET_MINING_TIME": "-5s",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				if err := os.Setenv(key, value); err != nil {
					t.Fatalf("failed to set environment variable %s: %v", key, err)
				}
			}
			defer func() {
				for key := range tt.envVars {
					if err := os.Unsetenv(key); err != nil {
						t.Logf("failed to unset environment variable %s: %v", key, err)
					}
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg == nil {
				t.Fatal("Load() returned nil config without error")
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "lunamint" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "lunamint")
	}
	if cfg.BatchTimeout != 300*time.Second {
		t.Errorf("BatchTimeout = %v, want 300s", cfg.BatchTimeout)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("BatchSize = %d, want 10000", cfg.BatchSize)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Errorf("KafkaBrokers = %v, want [localhost:9092]", cfg.KafkaBrokers)
	}
}

func TestGetEnvSlice_CommaSeparated(t *testing.T) {
	if err := os.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,c:9092"); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("KAFKA_BROKERS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"a:9092", "b:9092", "c:9092"}
	if len(cfg.KafkaBrokers) != len(want) {
		t.Fatalf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}
	for i := range want {
		if cfg.KafkaBrokers[i] != want[i] {
			t.Errorf("KafkaBrokers[%d] = %q, want %q", i, cfg.KafkaBrokers[i], want[i])
		}
	}
}
