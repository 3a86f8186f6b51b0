package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/database"
	"github.com/stemsi/exstem-admin/internal/logger"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	roleRepo := repository.NewRoleRepository(pool)

	codes := make([]string, len(model.AllPermissions))
	for i, p := range model.AllPermissions {
		codes[i] = string(p)
	}

	fmt.Println("=== Sync Permissions ===")
	fmt.Printf("Registering %d permission codes and granting them to role %d.\n", len(codes), model.SuperAdminRoleID)

	added, err := roleRepo.SyncPermissions(ctx, model.SuperAdminRoleID, codes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sync permissions")
	}

	fmt.Printf("\nSuccess! %d new grants added; the super admin role now holds every permission.\n", added)
}
