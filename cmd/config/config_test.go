package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.HRP != "rdx" {
		t.Fatalf("unexpected network hrp: %s", AppConfig.Network.HRP)
	}
	if AppConfig.Fees.CostUnitLimit == 0 {
		t.Fatalf("expected a non-zero cost unit limit")
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("simulator")
	if AppConfig.Network.HRP != "sim" {
		t.Fatalf("expected simulator hrp override, got %s", AppConfig.Network.HRP)
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  hrp: sandbox\nfees:\n  cost_unit_limit: 42\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "default.yaml"), data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.HRP != "sandbox" {
		t.Fatalf("expected network hrp sandbox, got %s", AppConfig.Network.HRP)
	}
	if AppConfig.Fees.CostUnitLimit != 42 {
		t.Fatalf("expected CostUnitLimit 42, got %d", AppConfig.Fees.CostUnitLimit)
	}
}
