package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"doordb/codec"

	"go.uber.org/zap/zapcore"
)

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("got %+v, want %+v", cfg, Default())
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
endpoint: doordb
codec: binary
calltimeout: 2s
heartbeat: 30s
loglevel: debug
registry:
  endpoints:
  - 127.0.0.1:2379
  prefix: /test/
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Endpoint:    "doordb",
		Codec:       "binary",
		Network:     DefaultNetwork,
		CallTimeout: 2 * time.Second,
		Heartbeat:   30 * time.Second,
		LogLevel:    "debug",
		Registry:    Registry{Endpoints: []string{"127.0.0.1:2379"}, Prefix: "/test/"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
	if ct, _ := cfg.CodecType(); ct != codec.CodecTypeBinary {
		t.Fatalf("CodecType: got %v, want binary", ct)
	}
	if l, _ := cfg.Level(); l != zapcore.DebugLevel {
		t.Fatalf("Level: got %v, want debug", l)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "endpont: x\n", "not found"},
		{"bad yaml", "endpoint: [\n", "parsing YAML"},
		{"empty endpoint", "endpoint: ''\n", "endpoint is empty"},
		{"unknown codec", "codec: json\n", "unknown codec"},
		{"bad network", "network: udp\n", "unsupported network"},
		{"negative timeout", "calltimeout: -1s\n", "negative calltimeout"},
		{"bad level", "loglevel: loud\n", "loglevel"},
	}
	for _, c := range cases {
		_, err := Parse([]byte(c.data))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: got %v, want error containing %q", c.name, err, c.want)
		}
	}
}

func TestLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(name, []byte("endpoint: /run/doordb.sock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(name)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Endpoint != "/run/doordb.sock" {
		t.Fatalf("got endpoint %q", cfg.Endpoint)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file: got %v", err)
	}
}
