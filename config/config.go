package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/models"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

// PaymentConfig carries the manual-transfer details shown to guests.
// Contributions arrive by Yape/Plin or bank transfer, never through a
// payment gateway, so this is display data only.
type PaymentConfig struct {
	YapeNumber  string
	PlinNumber  string
	BankName    string
	BankAccount string
	BankCCI     string
}

func LoadPaymentConfig() (*PaymentConfig, error) {
	return &PaymentConfig{
		YapeNumber:  os.Getenv("PAYMENT_YAPE_NUMBER"),
		PlinNumber:  os.Getenv("PAYMENT_PLIN_NUMBER"),
		BankName:    os.Getenv("PAYMENT_BANK_NAME"),
		BankAccount: os.Getenv("PAYMENT_BANK_ACCOUNT"),
		BankCCI:     os.Getenv("PAYMENT_BANK_CCI"),
	}, nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Gifts are hard-deleted while their ledger rows stay behind for
		// the orphans report, so no FK is created from gift_contributions
		// to gifts.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.User{}, &models.Category{}, &models.Gift{}, &models.Contribution{}, &models.Event{})
	if err != nil {
		return nil, err
	}

	if err := seedGuestUser(db); err != nil {
		log.Printf("Failed to seed guest user: %v", err)
	}
	if err := seedCategories(db); err != nil {
		log.Printf("Failed to seed categories: %v", err)
	}

	return db, nil
}

// CloseDatabase releases the connection pool on shutdown.
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// seedGuestUser creates the shared identity that unauthenticated payment
// confirmations resolve to. A failure here would make every guest
// confirmation fail later, so the caller logs it at boot.
func seedGuestUser(db *gorm.DB) error {
	var existing models.User
	err := db.Where("username = ?", models.GuestUsername).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	password := os.Getenv("GUEST_PASSWORD")
	if password == "" {
		password = "invitado2026"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&models.User{
		Username: models.GuestUsername,
		Password: string(hashed),
		Role:     models.RoleGuest,
	}).Error
}

func seedCategories(db *gorm.DB) error {
	categories := []models.Category{
		{Name: "Luna de Miel"},
		{Name: "Arte y Deco"},
		{Name: "Cocina"},
		{Name: "Dormitorio"},
		{Name: "Otro"},
	}

	for _, category := range categories {
		var existing models.Category
		err := db.Where("name = ?", category.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&category).Error; err != nil {
			return err
		}
	}
	return nil
}
