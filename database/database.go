package database

import (
	"dealcrm/config"
	"dealcrm/models"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrVersionConflict возвращается, когда запись была изменена параллельно.
// Каждая запись несет монотонный номер версии, запись в хранилище выполняется
// только при совпадении версии.
var ErrVersionConflict = errors.New("запись была изменена другим пользователем, повторите операцию")

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// NewDatabase создает новое подключение к базе данных
func NewDatabase(cfg *config.Config) (*Database, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// GetDB возвращает экземпляр GORM
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect устанавливает соединение с базой данных и выполняет миграции
func Connect(cfg *config.Config) (*gorm.DB, error) {
	// Формируем строку подключения
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.DBName,
	)

	// Настраиваем логгер
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// Устанавливаем соединение
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %v", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Выполняем SQL миграции
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("ошибка выполнения SQL миграций: %v", err)
	}

	// Выполняем автоматическую миграцию моделей
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автоматической миграции моделей: %v", err)
	}

	return db, nil
}

// runMigrations выполняет SQL миграции
func runMigrations(cfg *config.Config) error {
	// Формируем URL для миграций
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.DBName,
	)

	// Создаем экземпляр миграции
	m, err := migrate.New(
		"file://migrations",
		dsn,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %v", err)
	}

	// Выполняем миграции
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ошибка выполнения миграций: %v", err)
	}

	return nil
}

// AutoMigrate выполняет автоматическую миграцию моделей
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Property{},
		&models.ListingCycle{},
		&models.AcquisitionCycle{},
		&models.Offer{},
		&models.Deal{},
		&models.DealStageEntry{},
		&models.DealTask{},
		&models.DealDocument{},
		&models.PaymentPlan{},
		&models.PaymentInstallment{},
		&models.PaymentPlanModification{},
		&models.DealPayment{},
		&models.Transaction{},
		&models.OwnershipRecord{},
	)
	if err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %v", err)
	}

	return nil
}

// Методы для работы с пользователями

func (d *Database) CreateUser(user *models.User) error {
	return d.DB.Create(user).Error
}

func (d *Database) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := d.DB.First(&user, id).Error
	return &user, err
}

func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := d.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

// Методы для работы со сделками

func (d *Database) GetDealByID(id string) (*models.Deal, error) {
	var deal models.Deal
	err := d.DB.
		Preload("StageEntries").
		Preload("Tasks").
		Preload("Documents").
		Preload("Plan").
		Preload("Plan.Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_installments.sequence ASC")
		}).
		Preload("Payments").
		Preload("Modifications").
		Where("id = ?", id).
		First(&deal).Error
	return &deal, err
}

func (d *Database) GetDealsByAgentID(agentID uint) ([]models.Deal, error) {
	var deals []models.Deal
	err := d.DB.
		Where("primary_agent_id = ? OR secondary_agent_id = ?", agentID, agentID).
		Order("created_at DESC").
		Find(&deals).Error
	return deals, err
}

// Методы для работы с циклами и объектами

func (d *Database) GetListingCycleByID(id string) (*models.ListingCycle, error) {
	var cycle models.ListingCycle
	err := d.DB.Where("id = ?", id).First(&cycle).Error
	return &cycle, err
}

func (d *Database) GetAcquisitionCycleByID(id string) (*models.AcquisitionCycle, error) {
	var cycle models.AcquisitionCycle
	err := d.DB.Where("id = ?", id).First(&cycle).Error
	return &cycle, err
}

func (d *Database) GetPropertyByID(id string) (*models.Property, error) {
	var property models.Property
	err := d.DB.Where("id = ?", id).First(&property).Error
	return &property, err
}

// Запись с проверкой версии. Обновление выполняется только если версия записи
// в базе совпадает с версией, прочитанной вызывающим кодом. При несовпадении
// возвращается ErrVersionConflict и вызывающий код должен повторить чтение.

// SaveDealCAS сохраняет сделку с проверкой версии
func SaveDealCAS(tx *gorm.DB, deal *models.Deal) error {
	oldVersion := deal.Version
	deal.Version++
	deal.UpdatedAt = time.Now()

	res := tx.Model(&models.Deal{}).
		Where("id = ? AND version = ?", deal.ID, oldVersion).
		Select("*").
		Omit("created_at").
		Updates(deal)
	if res.Error != nil {
		deal.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		deal.Version = oldVersion
		return ErrVersionConflict
	}
	return nil
}

// SavePropertyCAS сохраняет объект недвижимости с проверкой версии
func SavePropertyCAS(tx *gorm.DB, property *models.Property) error {
	oldVersion := property.Version
	property.Version++
	property.UpdatedAt = time.Now()

	res := tx.Model(&models.Property{}).
		Where("id = ? AND version = ?", property.ID, oldVersion).
		Select("*").
		Omit("created_at").
		Updates(property)
	if res.Error != nil {
		property.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		property.Version = oldVersion
		return ErrVersionConflict
	}
	return nil
}

// SaveListingCycleCAS сохраняет листинговый цикл с проверкой версии
func SaveListingCycleCAS(tx *gorm.DB, cycle *models.ListingCycle) error {
	oldVersion := cycle.Version
	cycle.Version++
	cycle.UpdatedAt = time.Now()

	res := tx.Model(&models.ListingCycle{}).
		Where("id = ? AND version = ?", cycle.ID, oldVersion).
		Select("*").
		Omit("created_at").
		Updates(cycle)
	if res.Error != nil {
		cycle.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		cycle.Version = oldVersion
		return ErrVersionConflict
	}
	return nil
}

// SaveAcquisitionCycleCAS сохраняет цикл приобретения с проверкой версии
func SaveAcquisitionCycleCAS(tx *gorm.DB, cycle *models.AcquisitionCycle) error {
	oldVersion := cycle.Version
	cycle.Version++
	cycle.UpdatedAt = time.Now()

	res := tx.Model(&models.AcquisitionCycle{}).
		Where("id = ? AND version = ?", cycle.ID, oldVersion).
		Select("*").
		Omit("created_at").
		Updates(cycle)
	if res.Error != nil {
		cycle.Version = oldVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		cycle.Version = oldVersion
		return ErrVersionConflict
	}
	return nil
}
