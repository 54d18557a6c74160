package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - ключ, по которому *gorm.DB хранится в context
const DBContextKey = contextKey("db")

// Ключи gin.Context, которые выставляет auth middleware
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)
