package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ash2k/stager/wait"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/collector"
)

var (
	// BuildDate is the date when the binary was built.
	BuildDate string
	// GitCommit is the commit hash when the binary was built.
	GitCommit string
	// Version is the version of the binary.
	Version string
)

const (
	// ParamVerbose enables verbose logging.
	ParamVerbose = "verbose"
	// ParamJSON makes logger log in JSON format.
	ParamJSON = "json"
	// ParamConfigPath provides file with configuration.
	ParamConfigPath = "config-path"
	// ParamVersion makes program output its version.
	ParamVersion = "version"
)

// EnvPrefix is the prefix of the inspected environment variables.
const EnvPrefix = "GSC" // Go Stats Client

func main() {
	v, version, err := setupConfiguration()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("Error while parsing configuration: %v", err)
	}
	if version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		return
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	cancelOnInterrupt(ctx, cancelFunc)

	if err := run(ctx, cancelFunc, v); err != nil {
		log.Fatalf("%v", err)
	}
}

// run reads metric lines from stdin, feeds them into the collector and
// forwards the aggregated result to the configured server until stdin is
// exhausted or the process is interrupted.
func run(ctx context.Context, cancelFunc context.CancelFunc, v *viper.Viper) error {
	c, err := collector.NewCollectorFromViper(v, log.StandardLogger())
	if err != nil {
		return err
	}
	var wg wait.Group
	defer wg.Wait()
	wg.StartWithContext(ctx, c.Run)
	defer cancelFunc()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := apply(c, line); err != nil {
			log.WithError(err).WithField("line", line).Warn("Skipping invalid line")
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// apply parses one "name:value|type[|#tag1,tag2]" line and records it.
func apply(c *collector.Collector, line string) error {
	name, rest, ok := strings.Cut(line, ":")
	if !ok || name == "" {
		return fmt.Errorf("missing metric name")
	}
	parts := strings.Split(rest, "|")
	if len(parts) < 2 {
		return fmt.Errorf("missing metric type")
	}
	value, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", parts[0], err)
	}
	var tags gostatsc.Tags
	for _, p := range parts[2:] {
		if strings.HasPrefix(p, "#") {
			tags = strings.Split(p[1:], ",")
		}
	}
	switch parts[1] {
	case "c":
		c.CountAdd(name, tags, value)
	case "g":
		c.Gauge(name, tags, value)
	case "h", "ms":
		c.Histogram(name, tags, value)
	default:
		return fmt.Errorf("unknown metric type %q", parts[1])
	}
	return nil
}

// cancelOnInterrupt calls f when os.Interrupt or SIGTERM is received.
func cancelOnInterrupt(ctx context.Context, f context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			f()
		case <-ctx.Done():
		}
	}()
}

func setupConfiguration() (*viper.Viper, bool, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()

	var version bool

	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	cmd.BoolVar(&version, ParamVersion, false, "Print the version and exit")
	cmd.Bool(ParamVerbose, false, "Verbose")
	cmd.Bool(ParamJSON, false, "Log in JSON format")
	cmd.String(ParamConfigPath, "", "Path to the configuration file")

	collector.AddFlags(cmd)

	cmd.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err) // Should never happen
		}
	})

	setupLogger(v)

	if err := cmd.Parse(os.Args[1:]); err != nil {
		return nil, false, err
	}

	setupLogger(v)

	configPath := v.GetString(ParamConfigPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, err
		}
	}

	setupLogger(v)

	return v, version, nil
}

func setupLogger(v *viper.Viper) {
	if v.GetBool(ParamVerbose) {
		log.SetLevel(log.DebugLevel)
	}
	if v.GetBool(ParamJSON) {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
