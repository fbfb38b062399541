// Package permission provides the permission vocabulary and pure checks
// used by the HTTP layer to gate endpoints per user.
package permission

import "strings"

// Permission names an action a user may perform.
type Permission string

const (
	ClientsRead    Permission = "clients:read"
	ClientsWrite   Permission = "clients:write"
	ContractsRead  Permission = "contracts:read"
	ContractsWrite Permission = "contracts:write"
	BillingsRead   Permission = "billings:read"
	BillingsWrite  Permission = "billings:write"
	UsersManage    Permission = "users:manage"
	PartnerManage  Permission = "partner:manage"
)

// All returns every known permission.
func All() []Permission {
	return []Permission{
		ClientsRead, ClientsWrite,
		ContractsRead, ContractsWrite,
		BillingsRead, BillingsWrite,
		UsersManage, PartnerManage,
	}
}

// Known reports whether p names a valid permission.
// This is a PURE function.
func Known(p Permission) bool {
	for _, k := range All() {
		if k == p {
			return true
		}
	}
	return false
}

// Has reports whether the granted set covers the required permission.
// A write grant implies the matching read grant.
// This is a PURE function.
func Has(granted []Permission, required Permission) bool {
	for _, g := range granted {
		if g == required {
			return true
		}
		if implied, ok := readOf(g); ok && implied == required {
			return true
		}
	}
	return false
}

// readOf returns the read permission implied by a write permission.
func readOf(p Permission) (Permission, bool) {
	s := string(p)
	if strings.HasSuffix(s, ":write") {
		return Permission(strings.TrimSuffix(s, ":write") + ":read"), true
	}
	return "", false
}

// Parse converts a comma-separated list into permissions, dropping
// unknown or empty entries.
// This is a PURE function.
func Parse(s string) []Permission {
	if s == "" {
		return nil
	}
	var out []Permission
	for _, part := range strings.Split(s, ",") {
		p := Permission(strings.TrimSpace(part))
		if p != "" && Known(p) {
			out = append(out, p)
		}
	}
	return out
}

// Join renders permissions as a comma-separated list for storage.
// This is a PURE function.
func Join(perms []Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}
