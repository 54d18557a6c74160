package auth

// RBAC роли и разрешения
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PermPaymentsRead       = "payments:read"
	PermPaymentsRefund     = "payments:refund"
	PermRefundsRead        = "refunds:read"
	PermDonationsReset     = "donations:reset"
	PermReconciliationRead = "reconciliation:read"
)

// Permissions список разрешений
var Permissions = map[string][]string{
	RoleAdmin: {
		PermPaymentsRead,
		PermPaymentsRefund,
		PermRefundsRead,
		PermDonationsReset,
		PermReconciliationRead,
	},
	RoleUser: {
		PermPaymentsRead,
	},
}

// HasPermission проверяет есть ли у роли указанное разрешение
func HasPermission(role, permission string) bool {
	permissions, exists := Permissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}
