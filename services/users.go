package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"marketplace/db"
	"marketplace/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

type SignUpInput struct {
	Username  string `json:"username" binding:"required,max=150"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Password2 string `json:"password2" binding:"required,eqfield=Password"`
}

type ProfileUpdate struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
}

type PasswordChange struct {
	OldPassword string `json:"old_password" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
	Password2   string `json:"password2" binding:"required,eqfield=Password"`
}

type UserService struct {
	orm    *gorm.DB
	tokens *TokenIssuer
}

func NewUserService(orm *gorm.DB, tokens *TokenIssuer) *UserService {
	return &UserService{orm: orm, tokens: tokens}
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func checkPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, want) == 1
}

// checkPasswordStrength adds the rules binding tags cannot express.
func checkPasswordStrength(v *ValidationError, field, password, username string) {
	if _, failed := v.Fields[field]; failed {
		return
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		v.Add(field, "password is entirely numeric")
		return
	}
	if username != "" && strings.EqualFold(password, username) {
		v.Add(field, "password is too similar to the username")
	}
}

func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	v := structErrors(in)
	checkPasswordStrength(v, "password", in.Password, in.Username)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var alreadyExists int64
	err := db.GetReadOnlyDB(ctx, s.orm).Model(&models.User{}).Where("username = ?", in.Username).Count(&alreadyExists).Error
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if alreadyExists > 0 {
		return nil, fieldError("username", "a user with that username already exists")
	}

	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  passwordHash,
	}
	if err := db.GetWriteDB(ctx, s.orm).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	zap.L().Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks the credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx, s.orm).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrUnauthorized
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if !checkPassword(user.Password, password) {
		return "", nil, ErrUnauthorized
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// Authenticate resolves a bearer token to an existing user id.
func (s *UserService) Authenticate(ctx context.Context, token string) (int64, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.GetReadOnlyDB(ctx, s.orm).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if count == 0 {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx, s.orm).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := db.GetReadOnlyDB(ctx, s.orm).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (*models.User, error) {
	if err := structErrors(in).Err(); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
	}
	if len(updates) > 0 {
		res := db.GetWriteDB(ctx, s.orm).Model(&models.User{ID: id}).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update user %d: %w", id, res.Error)
		}
	}
	return s.Get(ctx, id)
}

func (s *UserService) ChangePassword(ctx context.Context, id int64, in PasswordChange) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	v := structErrors(in)
	if _, missing := v.Fields["old_password"]; !missing && !checkPassword(user.Password, in.OldPassword) {
		v.Add("old_password", "old password is not correct")
	}
	checkPasswordStrength(v, "password", in.Password, user.Username)
	if err := v.Err(); err != nil {
		return err
	}
	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = db.GetWriteDB(ctx, s.orm).Model(&models.User{ID: id}).Update("password", passwordHash).Error
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
