package database

import (
	"fmt"
	"log/slog"

	"github.com/touchstonehq/touchstone/internal/config"
	"github.com/touchstonehq/touchstone/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	slog.Info("Database connected", "host", cfg.DBHost, "db", cfg.DBName)
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.License{},
		&models.LicenseDetail{},
		&models.ClientDatabase{},
		&models.SupportJob{},
		&models.Event{},
	); err != nil {
		return err
	}

	// Picklist types share one row shape across six physical tables.
	for _, name := range models.PicklistNames {
		if err := db.Table(models.PicklistTables[name]).AutoMigrate(&models.PicklistEntry{}); err != nil {
			return fmt.Errorf("migrate picklist table %s: %w", name, err)
		}
	}
	return nil
}

// SeedAdmin creates the initial admin user when the users table is empty.
// Without it a fresh install has no way to log in.
func SeedAdmin(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.AdminPassword == "" {
		slog.Warn("Users table empty and ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{
		Username:     cfg.AdminUsername,
		DisplayName:  cfg.AdminDisplayName,
		Email:        cfg.AdminEmail,
		Role:         "admin",
		PasswordHash: string(hash),
		Active:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	slog.Info("Seeded admin user", "username", admin.Username)
	return nil
}
