package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/classhub/studybuddy/internal/api"
	"github.com/classhub/studybuddy/internal/auth"
	"github.com/classhub/studybuddy/internal/config"
	"github.com/classhub/studybuddy/internal/convstore"
	"github.com/classhub/studybuddy/internal/docstore"
	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/llm"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not loaded", zap.Error(err))
	}
	cfg := config.Load()

	store, err := docstore.NewSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize document store",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer store.Close()

	gateway, err := llm.NewGateway(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize model gateway", zap.Error(err))
	}

	extractor := extract.New(gateway, logger)
	conversations := convstore.New(store, llm.StudyBuddySystemPrompt)
	service := llm.NewService(gateway, extractor, conversations, store, logger)
	handler := api.NewHandler(service, auth.DevVerifier{}, logger)

	logger.Info("starting server", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler.Routes()); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
