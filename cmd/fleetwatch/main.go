package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fleetwatch/internal/api"
	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/receiver"
	"github.com/nixlim/fleetwatch/internal/source"
	"github.com/nixlim/fleetwatch/internal/state"
	"github.com/nixlim/fleetwatch/internal/storage"
	"github.com/nixlim/fleetwatch/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to the TOML config file (default ~/.config/fleetwatch/config.toml)")
	logFlag := flag.String("log", "", "Write the service log to the specified file path")
	debugFlag := flag.String("debug", "", "Write every received event (JSONL) to the specified file path")
	headlessFlag := flag.Bool("headless", false, "Run the receivers and API without the dashboard")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	loadResult, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: config error: %v\n", err)
		os.Exit(1)
	}
	cfg := loadResult.Config

	for _, w := range loadResult.Warnings {
		fmt.Fprintf(os.Stderr, "fleetwatch: config warning: %s\n", w)
	}

	switch {
	case *logFlag != "":
		logFile, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fleetwatch: failed to open log %q: %v\n", *logFlag, err)
			os.Exit(1)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	case !*headlessFlag:
		// The dashboard owns the terminal.
		log.SetOutput(io.Discard)
	}

	store, isPersistent, err := storage.NewStore(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: storage error: %v\n", err)
		os.Exit(1)
	}

	var eventLog receiver.Logger = receiver.NopLogger{}
	if *debugFlag != "" {
		debugFile, err := os.OpenFile(*debugFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fleetwatch: failed to open debug log %q: %v\n", *debugFlag, err)
			os.Exit(1)
		}
		defer debugFile.Close()
		eventLog = receiver.NewFileLogger(debugFile)
	}

	bundler := events.NewBundler(
		events.WithWindow(cfg.Bundler.Window()),
		events.WithMaxResults(cfg.Bundler.MaxResults),
		events.WithLogger(log.Default()),
	)

	feed := events.NewRingBuffer(cfg.Display.EventBufferSize)
	seedFeed(feed, store, cfg.Display.EventBufferSize)
	store.OnEvent(feed.Add)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recv := receiver.New(cfg.Receiver, store, eventLog)
	if err := recv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: failed to start receivers: %v\n", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, store, bundler)
		if err := apiServer.Start(ctx); err != nil {
			recv.Stop()
			fmt.Fprintf(os.Stderr, "fleetwatch: failed to start api: %v\n", err)
			os.Exit(1)
		}
	}

	stopSources := startSources(cfg, store, eventLog)

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopReceiver = func(context.Context) error {
		recv.Stop()
		return nil
	}
	shutdownMgr.StopSources = stopSources
	if apiServer != nil {
		shutdownMgr.StopAPI = apiServer.Shutdown
	}
	shutdownMgr.Cleanup = func() {
		if err := store.Close(); err != nil {
			log.Printf("ERROR: closing store: %v", err)
		}
	}

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			cancel()
			_ = shutdownMgr.Shutdown()
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headlessFlag {
		<-sigCh
		shutdown()
		return
	}

	model := tui.NewModel(cfg,
		tui.WithStoreProvider(store),
		tui.WithFeedProvider(feed),
		tui.WithBundler(bundler),
		tui.WithPersistenceFlag(isPersistent),
		tui.WithOnShutdown(shutdown),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
	)

	go func() {
		select {
		case <-sigCh:
			shutdown()
			p.Quit()
		case <-ctx.Done():
			return
		}
	}()

	if _, err := p.Run(); err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "fleetwatch: %v\n", err)
		os.Exit(1)
	}
	shutdown()
}

// seedFeed fills the live feed with the newest stored events, oldest first,
// so a restart does not start from an empty stream.
func seedFeed(feed *events.RingBuffer, store state.Store, limit int) {
	recent := store.Events(state.Query{Limit: limit})
	for i := len(recent) - 1; i >= 0; i-- {
		feed.Add(recent[i])
	}
}

// startSources starts the configured broker consumers and returns a func
// that stops them.
func startSources(cfg config.Config, store state.Store, eventLog receiver.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var stops []func()

	if cfg.MQTT.Enabled() {
		sub := source.NewMQTTSubscriber(cfg.MQTT, store, eventLog)
		sub.Start(ctx)
		stops = append(stops, sub.Stop)
		log.Printf("MQTT subscriber connecting to %s (topic %s)", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	if cfg.Kafka.Enabled() {
		consumer := source.NewKafkaConsumer(cfg.Kafka, store, eventLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
		stops = append(stops, func() {
			wg.Wait()
			if err := consumer.Close(); err != nil {
				log.Printf("WARNING: closing kafka consumer: %v", err)
			}
		})
		log.Printf("Kafka consumer reading %s from %v", cfg.Kafka.Topic, cfg.Kafka.BrokerList())
	}

	return func() {
		cancel()
		for _, stop := range stops {
			stop()
		}
	}
}
