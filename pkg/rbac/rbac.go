package rbac

import "fmt"

// 权限常量
const (
	PermissionReadNotification   = "notification:read"
	PermissionCreateNotification = "notification:create"
	PermissionUpdateNotification = "notification:update"
	PermissionDeleteNotification = "notification:delete"
)

// 角色常量
const (
	RoleReader   = "reader"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var rolePermissions = map[string][]string{
	RoleReader: {
		PermissionReadNotification,
	},
	RoleOperator: {
		PermissionReadNotification,
		PermissionCreateNotification,
		PermissionUpdateNotification,
	},
	RoleAdmin: {
		PermissionReadNotification,
		PermissionCreateNotification,
		PermissionUpdateNotification,
		PermissionDeleteNotification,
	},
}

// HasPermission 未知角色没有任何权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 与 HasPermission 相同，但返回错误便于 handler 处理
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 权限不足
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks permission %s", e.Role, e.Permission)
}
