// Package config resolves the kernel's "compile-time configuration"
// (spec.md §6) once at process start from defaults, a config file, and
// environment/flag overrides, then freezes it into a kernel.Config that is
// never re-read — the closest a host rewrite gets to values that were
// burned into the original firmware's .data section at link time.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Frozen-Burrito/nano-rtos/kernel"
)

// Runtime is the ambient configuration surrounding the frozen kernel.Config:
// ports, log level, and the tick period that drives platform/host.Clock.
type Runtime struct {
	Kernel kernel.Config

	LogLevel     string
	LogJSON      bool
	TickPeriodMS int
	MetricsAddr  string
	GPIOChip     string
}

// Load builds a Runtime from defaults, an optional config file, NANORTS_*
// environment variables, and command-line flags already registered on fs
// (grounded on the viper+pflag pairing used across the pack's manifests).
// fs must already have been parsed by the caller.
func Load(fs *pflag.FlagSet) (Runtime, error) {
	v := viper.New()
	v.SetEnvPrefix("NANORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("kernel.max_tasks", kernel.DefaultConfig().MaxTasks)
	v.SetDefault("kernel.max_active_tasks", kernel.DefaultConfig().MaxActiveTasks)
	v.SetDefault("kernel.stack_words", kernel.DefaultConfig().StackWords)
	v.SetDefault("kernel.max_alarms", kernel.DefaultConfig().MaxAlarms)
	v.SetDefault("kernel.max_queues", kernel.DefaultConfig().MaxQueues)
	v.SetDefault("kernel.max_queue_length", kernel.DefaultConfig().MaxQueueLength)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("tick_period_ms", 10)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("gpio.chip", "")

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Runtime{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Runtime{}, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	rt := Runtime{
		Kernel: kernel.Config{
			MaxTasks:       v.GetInt("kernel.max_tasks"),
			MaxActiveTasks: v.GetInt("kernel.max_active_tasks"),
			StackWords:     v.GetInt("kernel.stack_words"),
			MaxAlarms:      v.GetInt("kernel.max_alarms"),
			MaxQueues:      v.GetInt("kernel.max_queues"),
			MaxQueueLength: v.GetInt("kernel.max_queue_length"),
		},
		LogLevel:     v.GetString("log.level"),
		LogJSON:      v.GetBool("log.json"),
		TickPeriodMS: v.GetInt("tick_period_ms"),
		MetricsAddr:  v.GetString("metrics.addr"),
		GPIOChip:     v.GetString("gpio.chip"),
	}

	if err := rt.Kernel.Validate(); err != nil {
		return Runtime{}, err
	}
	if rt.TickPeriodMS <= 0 {
		return Runtime{}, fmt.Errorf("config: tick_period_ms must be positive, got %d", rt.TickPeriodMS)
	}
	return rt, nil
}

// RegisterFlags adds the flags Load understands to fs, grounded on the
// pflag usage pattern in arctir-proctor.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML/TOML/JSON config file")
	fs.Int("kernel.max_tasks", kernel.DefaultConfig().MaxTasks, "size of the fixed task table")
	fs.Int("kernel.max_active_tasks", kernel.DefaultConfig().MaxActiveTasks, "max simultaneously READY/RUN/WAIT tasks")
	fs.Int("kernel.stack_words", kernel.DefaultConfig().StackWords, "documented per-task stack budget in machine words")
	fs.Int("kernel.max_alarms", kernel.DefaultConfig().MaxAlarms, "size of the fixed alarm table")
	fs.Int("kernel.max_queues", kernel.DefaultConfig().MaxQueues, "size of the fixed queue table")
	fs.Int("kernel.max_queue_length", kernel.DefaultConfig().MaxQueueLength, "max length accepted by QueueInit")
	fs.String("log.level", "info", "zerolog level (trace/debug/info/warn/error)")
	fs.Bool("log.json", false, "emit structured JSON logs instead of the console writer")
	fs.Int("tick_period_ms", 10, "milliseconds between simulated hardware ticks")
	fs.String("metrics.addr", "", "if set, serve Prometheus metrics on this address")
	fs.String("gpio.chip", "", "if set, drive scenario 5's pin on this /dev/gpiochip device")
}
