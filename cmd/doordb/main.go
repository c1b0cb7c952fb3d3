// Command doordb talks to a running doordb service.
//
// Usage:
//
//	doordb [-config file] [-endpoint path] [-codec cbor|binary] text read KEY
//	doordb [flags] text write KEY VALUE
//	doordb [flags] text delete KEY
//	doordb [flags] counter create|delete|get|increment KEY
//
// The result is printed on standard output. Failures exit with status 1,
// usage errors with status 2.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"doordb/client"
	"doordb/codec"
	"doordb/config"
	"doordb/loadbalance"
	"doordb/message"
	"doordb/registry"
	"doordb/transport"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usageText = `usage: doordb [flags] <command>

commands:
	text read KEY
	text write KEY VALUE
	text delete KEY
	counter create|delete|get|increment KEY

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type usageError string

func (e usageError) Error() string { return string(e) }

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doordb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}
	configFile := fs.String("config", "", "configuration `file`")
	endpoint := fs.String("endpoint", "", "channel `name`; overrides the configuration")
	codecName := fs.String("codec", "", "wire encoding, cbor or binary; overrides the configuration")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintln(stderr, "doordb:", err)
			return 1
		}
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *codecName != "" {
		cfg.Codec = *codecName
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "doordb:", err)
		return 2
	}

	out, err := execute(cfg, fs.Args(), stderr)
	if err != nil {
		fmt.Fprintln(stderr, "doordb:", err)
		if _, ok := err.(usageError); ok {
			fs.Usage()
			return 2
		}
		return 1
	}
	fmt.Fprintln(stdout, out)
	return 0
}

// command is one parsed invocation, ready to run against a client.
type command func(c *client.Client) (string, error)

func parseCommand(args []string) (command, error) {
	if len(args) < 3 {
		return nil, usageError("missing command")
	}
	kind, op, key := args[0], args[1], args[2]
	rest := args[3:]

	switch kind {
	case "text":
		switch op {
		case "read":
			if len(rest) != 0 {
				break
			}
			return func(c *client.Client) (string, error) { return c.TextRead(key) }, nil
		case "delete":
			if len(rest) != 0 {
				break
			}
			return func(c *client.Client) (string, error) { return c.TextDelete(key) }, nil
		case "write":
			if len(rest) != 1 {
				return nil, usageError("text write takes KEY VALUE")
			}
			value := rest[0]
			return func(c *client.Client) (string, error) { return c.TextWrite(key, value) }, nil
		}
	case "counter":
		m, ok := message.ParseMethod(wireName(op))
		if !ok || len(rest) != 0 {
			break
		}
		return func(c *client.Client) (string, error) {
			n, err := c.CounterQuery(m, key)
			return fmt.Sprint(n), err
		}, nil
	}
	return nil, usageError(fmt.Sprintf("unknown command %q", strings.Join(args, " ")))
}

// wireName turns a command word like "increment" into the method name "Increment".
func wireName(op string) string {
	if op == "" {
		return op
	}
	return strings.ToUpper(op[:1]) + strings.ToLower(op[1:])
}

func execute(cfg *config.Config, args []string, stderr io.Writer) (string, error) {
	cmd, err := parseCommand(args)
	if err != nil {
		return "", err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return "", err
	}
	defer logger.Sync()

	ct, err := cfg.CodecType()
	if err != nil {
		return "", err
	}
	cdc, err := codec.GetCodec(ct)
	if err != nil {
		return "", err
	}

	sock := []transport.SocketOption{
		transport.WithNetwork(cfg.Network),
		transport.WithCallTimeout(cfg.CallTimeout),
		transport.WithHeartbeat(cfg.Heartbeat),
	}
	if len(cfg.Registry.Endpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints,
			registry.WithPrefix(cfg.Registry.Prefix),
			registry.WithLogger(logger))
		if err != nil {
			return "", err
		}
		defer reg.Close()
		sock = append(sock, transport.WithResolver(loadbalance.NewResolver(reg, nil)))
	}

	c, err := client.Dial(
		client.WithEndpoint(cfg.Endpoint),
		client.WithCodec(cdc),
		client.WithLogger(logger),
		client.WithSocketOptions(sock...),
	)
	if err != nil {
		return "", err
	}
	defer c.Close()

	return cmd(c)
}

// newLogger writes human-readable logs to stderr at the configured level.
func newLogger(cfg *config.Config, stderr io.Writer) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stderr),
		level,
	)
	return zap.New(core), nil
}
