package services

import (
	"dealcrm/models"
	"errors"

	"gorm.io/gorm"
)

// TransferOwnershipDTO представляет данные для переноса права собственности
type TransferOwnershipDTO struct {
	PropertyID    string
	NewOwnerID    string
	NewOwnerName  string
	OwnerType     models.BuyerType
	TransactionID string
	Shares        string
	Price         float64
	Memo          string
}

// OwnershipTransferrer представляет внешнюю возможность переноса права
// собственности. Перенос выполняется в транзакции вызывающей операции:
// пустой результат означает сбой переноса, завершение сделки в этом
// случае прерывается целиком.
type OwnershipTransferrer interface {
	Transfer(tx *gorm.DB, dto TransferOwnershipDTO) (*models.OwnershipRecord, error)
}

// OwnershipService предоставляет перенос права собственности
type OwnershipService struct {
	db *gorm.DB
}

// NewOwnershipService создает новый экземпляр OwnershipService
func NewOwnershipService(db *gorm.DB) *OwnershipService {
	return &OwnershipService{db: db}
}

// Transfer переносит право собственности и возвращает запись о переносе
func (s *OwnershipService) Transfer(tx *gorm.DB, dto TransferOwnershipDTO) (*models.OwnershipRecord, error) {
	if tx == nil {
		tx = s.db
	}
	if dto.PropertyID == "" || dto.NewOwnerID == "" {
		return nil, errors.New("не указан объект или новый владелец")
	}
	if dto.Price <= 0 {
		return nil, errors.New("цена переноса должна быть больше 0")
	}

	var property models.Property
	if err := tx.Where("id = ?", dto.PropertyID).First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("объект недвижимости не найден")
		}
		return nil, err
	}

	record := &models.OwnershipRecord{
		ID:            models.NewID(models.PrefixOwnership),
		PropertyID:    dto.PropertyID,
		NewOwnerID:    dto.NewOwnerID,
		NewOwnerName:  dto.NewOwnerName,
		OwnerType:     dto.OwnerType,
		TransactionID: dto.TransactionID,
		Shares:        dto.Shares,
		Price:         dto.Price,
		Memo:          dto.Memo,
	}

	if err := tx.Create(record).Error; err != nil {
		return nil, errors.New("ошибка при создании записи о переносе права собственности")
	}

	// Обновляем владельца объекта
	if err := tx.Model(&models.Property{}).Where("id = ?", dto.PropertyID).Updates(map[string]interface{}{
		"owner_id":   dto.NewOwnerID,
		"owner_name": dto.NewOwnerName,
	}).Error; err != nil {
		return nil, errors.New("ошибка при обновлении владельца объекта")
	}

	return record, nil
}
