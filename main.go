package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/krshsl/prepmate/repository"
	"github.com/krshsl/prepmate/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	}
	return logger.Silent
}

func main() {
	config := services.LoadConfig()

	logCloser := services.SetupLogging(config.Log)
	defer logCloser.Close()

	if config.Database.URL == "" {
		slog.Error("DATABASE_URL must be set")
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(config.Database.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	slog.Info("Connected to database")

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	if config.Database.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := services.NewDatabaseSeeder(repo).SeedDatabase(ctx); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
		cancel()
	}

	server, err := services.NewServer(config, repo)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	server.Start()
}
