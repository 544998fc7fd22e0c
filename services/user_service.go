package services

import (
	"dealcrm/database"
	"dealcrm/models"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db *database.Database
}

type UserDTO struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type CreateUserRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"omitempty,oneof=AGENT ADMIN"`
}

func NewUserService(db *database.Database) *UserService {
	return &UserService{db: db}
}

// CreateUserInternal создает нового пользователя
func (s *UserService) CreateUserInternal(req CreateUserRequest) (*models.User, error) {
	// Проверяем, что email не занят
	if _, err := s.db.GetUserByEmail(req.Email); err == nil {
		return nil, errors.New("пользователь с таким email уже существует")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("ошибка при хешировании пароля")
	}

	role := models.UserRole(req.Role)
	if role == "" {
		role = models.UserRoleAgent
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Role:      role,
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByEmail возвращает пользователя по email
func (s *UserService) FindByEmail(email string) (*models.User, error) {
	return s.db.GetUserByEmail(email)
}

// FindByID возвращает пользователя по ID
func (s *UserService) FindByID(id uint) (*models.User, error) {
	return s.db.GetUserByID(id)
}

// ToDTO конвертирует модель User в DTO
func (s *UserService) ToDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      string(user.Role),
	}
}
