package entity

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

// User is owned by the account service; the booking core only reads it to
// resolve a buyer.
type User struct {
	Base
	Username      string   `db:"username"`
	Email         string   `db:"email"`
	Role          UserRole `db:"role"`
	EmailVerified bool     `db:"email_verified"`
	IsActive      bool     `db:"is_active"`
}
