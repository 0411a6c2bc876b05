package main

import (
	"log"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vaultwatch/riskpulse/internal/config"
	"github.com/vaultwatch/riskpulse/internal/model"
	"github.com/vaultwatch/riskpulse/internal/server"
	"github.com/vaultwatch/riskpulse/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if cfg.AppEnv == "development" {
		if err := seedDevUsers(db); err != nil {
			log.Fatalf("failed to seed dev users: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
	} else {
		log.Println("REDIS_URL not set, live notifications are limited to this process")
	}

	srv := server.NewServer(cfg, db, redisClient)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Notification{},
	)
}

func seedDevUsers(db *gorm.DB) error {
	seeds := []struct {
		email    string
		password string
		role     string
	}{
		{"admin@riskpulse.dev", "admin123", model.RoleAdmin},
		{"analyst@riskpulse.dev", "analyst123", model.RoleMember},
	}

	for _, seed := range seeds {
		var count int64
		if err := db.Model(&model.User{}).
			Where("email = ?", seed.email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := model.User{
			Email:        seed.email,
			PasswordHash: string(hash),
			Role:         seed.role,
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("seeded %s user %s", seed.role, seed.email)
	}

	return nil
}
