// Command nanorts is the demo application spec.md §1 calls out of scope for
// the core: it wires real tasks, alarms, and queues against package kernel
// and drives them from a simulated timer ISR and a simulated UART-RX ISR,
// reproducing five of the six end-to-end scenarios of spec.md §8
// (preemption, chain, queue, access, pwm); the blocking-send scenario is
// covered only by package kernel's tests.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Frozen-Burrito/nano-rtos/internal/config"
	"github.com/Frozen-Burrito/nano-rtos/internal/klog"
	"github.com/Frozen-Burrito/nano-rtos/internal/metrics"
	"github.com/Frozen-Burrito/nano-rtos/kernel"
	"github.com/Frozen-Burrito/nano-rtos/platform/host"
)

func main() {
	fs := pflag.NewFlagSet("nanorts", pflag.ExitOnError)
	scenario := fs.String("scenario", "preemption", "preemption|chain|queue|access|pwm")
	config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	rt, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := klog.New(klog.Options{Level: rt.LogLevel, JSON: rt.LogJSON})

	cfg := rt.Kernel
	switch *scenario {
	case "pwm":
		cfg.MaxTasks = 11
		cfg.MaxAlarms = 6
	case "queue", "access":
		if cfg.MaxQueues < 1 {
			cfg.MaxQueues = 1
		}
	}

	var opts []kernel.Option
	opts = append(opts, kernel.WithLogger(log))

	var reg *prometheus.Registry
	if rt.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, kernel.WithMetrics(metrics.New(reg)))
	}

	k, err := kernel.New(cfg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("kernel.New")
	}

	pin, err := newGPIOPin(rt.GPIOChip, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("open GPIO pin")
	}
	defer pin.Close()

	switch *scenario {
	case "preemption":
		buildPreemption(k, log)
	case "chain":
		buildChain(k, log)
	case "queue":
		buildProducerConsumer(k, log)
	case "access":
		buildAccessControl(k, log)
	case "pwm":
		buildPWM(k, log, pin)
	default:
		log.Fatal().Str("scenario", *scenario).Msg("unknown scenario")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	tickPeriod := time.Duration(rt.TickPeriodMS) * time.Millisecond
	clk := host.NewClock()
	g.Go(func() error {
		err := clk.Run(ctx, tickPeriod, k.TickISR)
		if err == context.Canceled || err == context.DeadlineExceeded {
			return nil
		}
		return err
	})

	// Idle loop: spec.md §4.2's "enter low-power sleep until the next
	// interrupt" falls out of every non-RUN task goroutine already being
	// parked on a channel receive (SPEC_FULL.md §CONTEXT SWITCH); this loop
	// only matters when no task is READY at all, re-polling the scheduler
	// once per quantum in case an ISR goroutine made one READY without the
	// kernel itself waking anyone.
	idle := host.NewIdleSleep(tickPeriod)
	g.Go(func() error {
		for {
			if err := idle.Sleep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if k.CurrentTask() == kernel.NoTask {
				k.SchedulerRun()
			}
		}
	})

	if *scenario == "queue" {
		// Simulated UART-RX ISR: occasionally activates a task out-of-band,
		// exercising ActivateFromISR independent of the tick-driven alarms.
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(jitter(7 * tickPeriod)):
					_ = k.ActivateFromISR(taskConsumer)
				}
			}
		})
	}

	if reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: rt.MetricsAddr, Handler: mux}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	k.Init()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("nanorts exited with error")
		os.Exit(1)
	}
}

// jitter avoids every simulated ISR firing in perfect lockstep, the host
// analogue of real interrupt sources never being exactly synchronized.
func jitter(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int63n(int64(base)/4+1))
}
