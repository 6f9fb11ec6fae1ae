package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	UserName  string    `gorm:"size:100" json:"user_name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"not null;default:2" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Email    string   `json:"email" binding:"required,email"`
	UserName string   `json:"user_name" binding:"omitempty,max=100"`
	Password string   `json:"password" binding:"required,min=6"`
	Role     UserRole `json:"role" binding:"omitempty,oneof=1 2"`
}

type UpdateUser struct {
	Email    *string   `json:"email" binding:"omitempty,email"`
	UserName *string   `json:"user_name" binding:"omitempty,max=100"`
	Password *string   `json:"password" binding:"omitempty,min=6"`
	Role     *UserRole `json:"role" binding:"omitempty,oneof=1 2"`
}

type LoginInfo struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, utils.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, int(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginInfo{Token: token, User: &user}, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	email := normalizeEmail(input.Email)
	if err := utils.ValidateUnique[User](ctx, "email", email, nil); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == 0 {
		role = UserRoleEmployee
	}

	user := User{
		Email:    email,
		UserName: strings.TrimSpace(input.UserName),
		Password: string(hashed),
		Role:     role,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translateDuplicate(err, "email already registered")
	}
	return &user, nil
}

func UpdateUserById(ctx context.Context, id string, input *UpdateUser) (*User, error) {
	db := config.GetDB()
	user, err := fetch[User](db.WithContext(ctx), "user_id", id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := utils.ValidateUnique[User](ctx, "email", email, id); err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if input.UserName != nil {
		updates["user_name"] = strings.TrimSpace(*input.UserName)
	}
	if input.Password != nil {
		hashed, err := utils.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashed)
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, utils.Validation("role", "invalid role")
		}
		updates["role"] = *input.Role
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, translateDuplicate(err, "email already registered")
	}
	return fetch[User](db.WithContext(ctx), "user_id", id)
}

// DeleteUser refuses to delete the calling user. Quotations created by the
// user keep existing with created_by set to NULL.
func DeleteUser(ctx context.Context, id string) (*User, error) {
	if currentId, ok := utils.GetUserIdFromContext(ctx); ok && currentId == id {
		return nil, utils.Validation("id", "you cannot delete your own account")
	}

	db := config.GetDB()
	user, err := fetch[User](db.WithContext(ctx), "user_id", id)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Quotation{}).Where("created_by = ?", id).Update("created_by", nil).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUser(ctx context.Context, id string) (*User, error) {
	return fetch[User](config.GetDB().WithContext(ctx), "user_id", id)
}

func ListUsers(ctx context.Context, page Page) (*PageResult[User], error) {
	db := config.GetDB()
	return paginate[User](db.WithContext(ctx).Model(&User{}), page, "created_at DESC")
}

// UpsertAdmin creates the admin account or resets its password and role.
func UpsertAdmin(ctx context.Context, email string, name string, password string) (*User, bool, error) {
	db := config.GetDB()
	email = normalizeEmail(email)

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	var user User
	err = db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{Email: email, UserName: name, Password: string(hashed), Role: UserRoleAdmin}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, false, err
		}
		return &user, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"user_name": name,
		"password":  string(hashed),
		"role":      UserRoleAdmin,
	}).Error; err != nil {
		return nil, false, err
	}
	return &user, false, nil
}
