package security

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermReadEmployees   Permission = "read_employees"
	PermWriteEmployees  Permission = "write_employees"
	PermDeleteEmployees Permission = "delete_employees"
	PermManageContracts Permission = "manage_contracts"
	PermReadLeads       Permission = "read_leads"
	PermWriteLeads      Permission = "write_leads"
	PermDeleteLeads     Permission = "delete_leads"
	PermRunReminders    Permission = "run_reminders"
	PermManageUsers     Permission = "manage_users"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermReadEmployees,
		PermWriteEmployees,
		PermDeleteEmployees,
		PermManageContracts,
		PermReadLeads,
		PermWriteLeads,
		PermDeleteLeads,
		PermRunReminders,
		PermManageUsers,
	},
	domain.RoleHR: {
		PermReadEmployees,
		PermWriteEmployees,
		PermDeleteEmployees,
		PermManageContracts,
		PermReadLeads,
	},
	domain.RoleSales: {
		PermReadEmployees,
		PermReadLeads,
		PermWriteLeads,
		PermDeleteLeads,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *zap.Logger
}

func NewAuthorizationService(logger *zap.Logger) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{logger: logger}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			zap.String("role", string(role)),
			zap.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}
