package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/http/controller"
	"github.com/tnqbao/gau-image-service/http/route"
	infraPkg "github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/repository"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	if cfg.EnvConfig.Environment.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	server := &http.Server{
		Addr:              ":" + cfg.EnvConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP Server started on :%s", cfg.EnvConfig.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	infra.Logger.InfoWithContextf(ctx, "Shutting down HTTP server...")
	if err := server.Shutdown(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "HTTP server forced to shutdown: %v", err)
	}
	if err := infra.Close(ctx); err != nil {
		log.Printf("Failed to release infrastructure: %v", err)
	}

	log.Println("HTTP server exited properly")
}
