package config

// DefaultConfig returns the configuration used when no file is present.
// MQTT and Kafka ingest stay off until a broker is set.
func DefaultConfig() Config {
	return Config{
		Receiver: ReceiverConfig{
			GRPCPort: 4317,
			HTTPPort: 4318,
			Bind:     "127.0.0.1",
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
			Bind:    "127.0.0.1",
		},
		Bundler: BundlerConfig{
			WindowSeconds: 120,
			MaxResults:    0,
		},
		Display: DisplayConfig{
			EventBufferSize: 1000,
			RefreshRateMS:   500,
		},
		Storage: StorageConfig{
			DBPath:             "~/.local/share/fleetwatch/events.db",
			RetentionDays:      30,
			MaxEventsPerDevice: 1000,
		},
		MQTT: MQTTConfig{
			Topic:    "devices/+/events",
			ClientID: "fleetwatch",
			QoS:      1,
		},
		Kafka: KafkaConfig{
			Topic:   "device-events",
			GroupID: "fleetwatch",
		},
	}
}
