// Package rbac evaluates role-based permissions against a static table.
//
// The table is immutable and evaluation is pure, so concurrent reads need no
// synchronization. Changing a role's grants is a code change.
package rbac

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/apperror"
)

// Role is the closed set of membership roles.
type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleDepartmentManager Role = "DEPARTMENT_MANAGER"
	RoleMember            Role = "MEMBER"
)

// Scope is the breadth of a grant. Organization is the broadest and satisfies
// any requested scope; department and own satisfy only themselves.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeDepartment   Scope = "department"
	ScopeOwn          Scope = "own"

	// ScopeAny marks a request that carries no target scope.
	ScopeAny Scope = ""
)

// Wildcard matches every resource or action.
const Wildcard = "*"

// Permission grants an action on a resource at a scope. Resource and Action
// may be Wildcard.
type Permission struct {
	Resource string
	Action   string
	Scope    Scope
}

// Context identifies the subject of a permission check.
type Context struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	Role   Role
}

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		{Resource: Wildcard, Action: Wildcard, Scope: ScopeOrganization},
	},
	RoleDepartmentManager: {
		{Resource: "users", Action: "read", Scope: ScopeDepartment},
		{Resource: "users", Action: "update", Scope: ScopeDepartment},
		{Resource: "content", Action: "create", Scope: ScopeDepartment},
		{Resource: "content", Action: "read", Scope: ScopeDepartment},
		{Resource: "content", Action: "update", Scope: ScopeDepartment},
		{Resource: "content", Action: "delete", Scope: ScopeDepartment},
		{Resource: "reports", Action: "read", Scope: ScopeDepartment},
		{Resource: "materials", Action: "create", Scope: ScopeDepartment},
		{Resource: "materials", Action: "read", Scope: ScopeDepartment},
		{Resource: "materials", Action: "update", Scope: ScopeDepartment},
	},
	RoleMember: {
		{Resource: "users", Action: "read", Scope: ScopeOrganization},
		{Resource: "content", Action: "read", Scope: ScopeOrganization},
		{Resource: "materials", Action: "read", Scope: ScopeOrganization},
		{Resource: "profile", Action: "read", Scope: ScopeOwn},
		{Resource: "profile", Action: "update", Scope: ScopeOwn},
	},
}

// RoleFromString parses a stored role value.
func RoleFromString(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleDepartmentManager, RoleMember:
		return Role(raw), true
	default:
		return "", false
	}
}

// HasPermission reports whether the subject's role grants action on resource
// at targetScope. Pass ScopeAny when the request carries no scope. The role's
// permission list is scanned in order and the first match wins; absence of a
// match is the only deny condition.
func HasPermission(ctx Context, resource, action string, targetScope Scope) bool {
	for _, p := range rolePermissions[ctx.Role] {
		if p.Resource != Wildcard && p.Resource != resource {
			continue
		}
		if p.Action != Wildcard && p.Action != action {
			continue
		}
		if scopeSatisfies(p.Scope, targetScope) {
			return true
		}
	}
	return false
}

// scopeSatisfies implements the grant-breadth asymmetry: organization covers
// everything narrower, any grant covers an unscoped request, and otherwise the
// scopes must match exactly.
func scopeSatisfies(granted, requested Scope) bool {
	if requested == ScopeAny {
		return true
	}
	if granted == ScopeOrganization {
		return true
	}
	return granted == requested
}

// EnforcePermission is HasPermission with a PermissionError on deny.
func EnforcePermission(ctx Context, resource, action string, targetScope Scope) error {
	if HasPermission(ctx, resource, action, targetScope) {
		return nil
	}
	return apperror.NewPermission(ctx.UserID.String(), string(ctx.Role), resource, action)
}
