package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/speedsters/marketplace-core/internal/api"
	"github.com/speedsters/marketplace-core/internal/config"
	"github.com/speedsters/marketplace-core/internal/config/di"
)

func main() {
	config.Init("marketd")

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	router := container.Get("api").(api.Server).Router()

	zap.L().Info("Serving marketplace on :" + config.Get().ApiPort)

	if err := http.ListenAndServe(":"+config.Get().ApiPort, router); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to start marketplace server")
	}
}
