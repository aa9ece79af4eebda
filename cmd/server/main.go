package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/config"
	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/server"
	"github.com/Ibeneme/kindred-app-sub000/internal/store/sqlstore"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	gin.SetMode(cfg.GinMode)

	st, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "kindred",
	}

	router := server.NewRouter(server.Deps{Store: st, TokenConfig: tokenCfg, Log: zl})
	zl.Info("listening", zap.String("addr", fmt.Sprintf(":%d", cfg.Port)))
	zl.Fatal("server stopped", zap.Error(server.Run(cfg, router)))
}
