package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/consumer/worker"
	infraPkg "github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/repository"
	"github.com/tnqbao/gau-image-service/service"
)

func main() {
	err := godotenv.Load("../.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	if infra.RabbitMQ == nil {
		log.Fatal("RabbitMQ is not configured, nothing to consume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	confirmation := service.InitConfirmationService(infra, repo)

	imageConsumer := worker.NewImageConsumer(infra.RabbitMQ.Channel, infra.Logger, confirmation)
	if err := imageConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Image consumer: %v", err)
		log.Fatalf("Failed to start Image consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := infra.Close(closeCtx); err != nil {
		log.Printf("Failed to release infrastructure: %v", err)
	}

	infra.Logger.InfoWithContextf(closeCtx, "Consumer exited properly")
}
