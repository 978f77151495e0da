package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classfund/core"
)

// User is an admin account allowed to run the class fund.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Actor identifies u in logs and session tokens.
func (u User) Actor() core.Actor {
	return core.Actor{ID: u.ID, Name: u.Name, Email: u.Email}
}
