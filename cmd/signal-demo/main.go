// signal-demo publishes demo traffic on a bus with Prometheus metrics and,
// when configured, bridges the bus to peers over NATS with tracing enabled.
//
// Usage:
//
//	signal-demo [-config demo.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluxorio/signal/pkg/bus"
	"github.com/fluxorio/signal/pkg/config"
	"github.com/fluxorio/signal/pkg/observability/otel"
	"github.com/fluxorio/signal/pkg/observability/prometheus"
	sig "github.com/fluxorio/signal/pkg/signal"
)

type demoConfig struct {
	Topic   string `yaml:"topic"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
	Cluster struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Prefix  string `yaml:"prefix"`
		Name    string `yaml:"name"`
	} `yaml:"cluster"`
}

type tick struct {
	Seq  int       `json:"seq"`
	Sent time.Time `json:"sent"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML/JSON config")
	flag.Parse()

	cfg := demoConfig{}
	cfg.Topic = "demo.ticks"
	cfg.Metrics.Port = 2112
	if *configPath != "" {
		if err := config.LoadWithEnv(*configPath, "SIGNAL", &cfg); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, otel.Config{ServiceName: "signal-demo"})
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	metrics := prometheus.GetMetrics()
	b := bus.NewBus[tick](sig.WithHook(metrics.Hook(cfg.Topic)))

	h1, err := b.Subscribe(cfg.Topic, func(t tick) {
		fmt.Printf("first:  tick %d\n", t.Seq)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer h1.Close()
	h2, err := b.Subscribe(cfg.Topic, func(t tick) {
		fmt.Printf("second: tick %d\n", t.Seq)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer h2.Close()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", prometheus.Handler())
		log.Printf("metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	publish := func(topic string, t tick) error { return b.Publish(topic, t) }
	if cfg.Cluster.Enabled {
		bridge, err := bus.NewClusterBridge(b, bus.ClusterConfig{
			URL:    cfg.Cluster.URL,
			Prefix: cfg.Cluster.Prefix,
			Name:   cfg.Cluster.Name,
		})
		if err != nil {
			log.Fatalf("cluster bridge: %v", err)
		}
		defer bridge.Close()
		publish = func(topic string, t tick) error { return bridge.PublishContext(ctx, topic, t) }
		log.Printf("bridged to %s", cfg.Cluster.URL)
	}

	// The contract walkthrough: both fire, then one, then none.
	run := func(seq int) {
		if err := publish(cfg.Topic, tick{Seq: seq, Sent: time.Now()}); err != nil {
			log.Printf("publish: %v", err)
		}
	}
	run(100)
	b.Unsubscribe(cfg.Topic, h1)
	run(150)
	h2.Close()
	run(200)

	if !cfg.Cluster.Enabled {
		return
	}
	// In cluster mode keep publishing so peers (and the metrics endpoint)
	// have something to watch.
	seq := 200
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "shutting down")
			return
		case <-t.C:
			seq++
			run(seq)
		}
	}
}
