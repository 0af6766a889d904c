package main

import (
	"flag"
	"log"
	"os"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbols=%v tf=%s", cfg.Environment, cfg.Stream.Symbols, cfg.Forecast.Timeframe)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: connected brokers=%v bars=%s predictions=%s", cfg.Kafka.Brokers, cfg.Kafka.BarsTopic, cfg.Kafka.PredictionsTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
