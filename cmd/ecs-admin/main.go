package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	rootCmd := &cobra.Command{
		Use:           "ecs-admin",
		Short:         "DSHI ECS 운영 도구",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(importAssembliesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env 명령 실행에 필요한 설정과 DB
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, db: db, repos: repository.NewRepositories(db), logger: zapLogger}, nil
}

func (e *env) Close() {
	e.logger.Sync()
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// searchStore Redis를 쓰면 서버의 검색 캐시도 함께 비워진다
func (e *env) searchStore() cache.Cache {
	if !e.cfg.Redis.Enabled() {
		return cache.NewMemory()
	}
	return cache.NewRedis(redis.NewClient(&redis.Options{
		Addr:     e.cfg.Redis.Addr(),
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	}))
}
