package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/plantcare/internal/config"
	sensorSimulator "github.com/LeonardoBeccarini/plantcare/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/plantcare/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

var (
	simInterval time.Duration
	simDecay    float64
	simTankCm   float64
	simLat      float64
	simLon      float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the plant device",
	Long:  "simulate writes a plant record to the store periodically and follows the pump intent the dashboard writes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFiles()...)
		interval := cfg.SimInterval
		if cmd.Flags().Changed("interval") {
			interval = simInterval
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Rabbit.ClientID == "" || cfg.Rabbit.ClientID == "plantcare" {
			cfg.Rabbit.ClientID = "plantcare-device"
		}
		store, err := rabbitmq.Open(ctx, &cfg.Rabbit)
		if err != nil {
			return err
		}
		defer store.Close()

		generator := sensorSimulator.NewDataGenerator(simDecay)
		generator.SetTank(simTankCm)
		generator.SeedFromSoilGrids(ctx, upstream.New("soilgrids", 8*time.Second, nil), simLat, simLon)

		log.Printf("simulator: publishing every %s under %q", interval, cfg.Rabbit.Root)
		return sensorSimulator.NewSensorSimulator(store, generator, log.Default()).Start(ctx, interval)
	},
}

func init() {
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 5*time.Second, "Publish interval (overrides SIM_INTERVAL)")
	simulateCmd.Flags().Float64Var(&simDecay, "decay", 0.005, "Soil moisture lost per minute with the pump off, as a fraction (0.005 = 0.5 points/min)")
	simulateCmd.Flags().Float64Var(&simTankCm, "tank", 12, "Initial water level in cm")
	simulateCmd.Flags().Float64Var(&simLat, "lat", 0, "Latitude used to seed moisture from SoilGrids (0 disables)")
	simulateCmd.Flags().Float64Var(&simLon, "lon", 0, "Longitude used to seed moisture from SoilGrids")
}
