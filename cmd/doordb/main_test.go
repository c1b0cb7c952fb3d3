package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"doordb/message"
	"doordb/server"
)

func serve(t *testing.T) string {
	t.Helper()
	texts := map[string]string{"greeting": "hello"}
	var counter uint64
	var mu sync.Mutex
	h := server.HandlerFunc(func(ctx context.Context, q message.Query) (message.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		switch q := q.(type) {
		case message.TextQuery:
			switch m := q.Method.(type) {
			case message.TextWrite:
				texts[m.Key] = m.Value
				return message.Text(m.Value), nil
			case message.TextRead:
				if v, ok := texts[m.Key]; ok {
					return message.Text(v), nil
				}
			}
			return nil, errors.New("no such key")
		case message.CounterQuery:
			if q.Method == message.MethodIncrement {
				counter++
			}
			return message.Counter(counter), nil
		}
		return nil, errors.New("unsupported")
	})

	svr := server.NewServer(h)
	path := filepath.Join(t.TempDir(), "doordb.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	go svr.ServeListener(ln)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	return path
}

func runCmd(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun(t *testing.T) {
	path := serve(t)

	cases := []struct {
		args []string
		code int
		out  string
	}{
		{[]string{"text", "read", "greeting"}, 0, "hello\n"},
		{[]string{"-codec", "binary", "text", "write", "k", "v"}, 0, "v\n"},
		{[]string{"text", "read", "k"}, 0, "v\n"},
		{[]string{"counter", "increment", "c"}, 0, "1\n"},
		{[]string{"counter", "Get", "c"}, 0, "1\n"},
		{[]string{"text", "read", "absent"}, 1, ""},
	}
	for _, c := range cases {
		args := append([]string{"-endpoint", path}, c.args...)
		code, out, errOut := runCmd(args...)
		if code != c.code || out != c.out {
			t.Errorf("%v: got %d %q (stderr %q), want %d %q", c.args, code, out, errOut, c.code, c.out)
		}
	}
}

func TestRunServerError(t *testing.T) {
	path := serve(t)
	_, _, errOut := runCmd("-endpoint", path, "text", "read", "absent")
	if !strings.Contains(errOut, "no such key") {
		t.Fatalf("stderr %q does not carry the server message", errOut)
	}
}

func TestRunUsage(t *testing.T) {
	cases := [][]string{
		{},
		{"text"},
		{"text", "append", "k"},
		{"text", "write", "k"},
		{"text", "read", "k", "extra"},
		{"counter", "reset", "c"},
		{"-codec", "json", "text", "read", "k"},
		{"-nosuchflag"},
	}
	for _, args := range cases {
		if code, _, _ := runCmd(args...); code != 2 {
			t.Errorf("%q: got exit %d, want 2", args, code)
		}
	}
}

func TestRunNoService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sock")
	if code, _, _ := runCmd("-endpoint", path, "counter", "get", "c"); code != 1 {
		t.Fatalf("got exit %d, want 1", code)
	}
}

func TestRunConfigFile(t *testing.T) {
	path := serve(t)
	cfg := filepath.Join(t.TempDir(), "config")
	data := "endpoint: " + path + "\ncodec: binary\ncalltimeout: 5s\n"
	if err := os.WriteFile(cfg, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCmd("-config", cfg, "text", "read", "greeting")
	if code != 0 || out != "hello\n" {
		t.Fatalf("got %d %q (stderr %q)", code, out, errOut)
	}

	if code, _, _ := runCmd("-config", filepath.Join(t.TempDir(), "missing"), "text", "read", "k"); code != 1 {
		t.Fatalf("missing config: got exit %d, want 1", code)
	}
}
