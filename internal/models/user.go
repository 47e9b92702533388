package models

import "time"

// User создаётся лениво: первый успешный вход по коду для email
// заводит запись, повторные входы переиспользуют её.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
