// Package navigation holds the static per-role menu tables.
package navigation

import (
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
)

const LoginPath = "/login"

// Item is one navigation entry.
type Item struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var adminMenu = []Item{
	{Label: "Dashboard", Path: "/admin/dashboard"},
	{Label: "Merchants", Path: "/admin/merchants"},
	{Label: "Customers", Path: "/admin/customers"},
	{Label: "Transactions", Path: "/admin/transactions"},
	{Label: "Reports", Path: "/admin/reports"},
	{Label: "Settings", Path: "/admin/settings"},
}

var merchantMenu = []Item{
	{Label: "Dashboard", Path: "/merchant/dashboard"},
	{Label: "Customers", Path: "/merchant/customers"},
	{Label: "Rewards", Path: "/merchant/rewards"},
	{Label: "Transactions", Path: "/merchant/transactions"},
	{Label: "Business Profile", Path: "/merchant/profile"},
	{Label: "Settings", Path: "/merchant/settings"},
}

var menus = map[enums.Role][]Item{
	enums.RoleAdmin:    adminMenu,
	enums.RoleMerchant: merchantMenu,
}

// Menu returns a copy of the table for role. Unknown roles get nothing.
func Menu(role enums.Role) []Item {
	items := menus[role]
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// HomePath is the landing page for role, or the login page.
func HomePath(role enums.Role) string {
	items := menus[role]
	if len(items) == 0 {
		return LoginPath
	}
	return items[0].Path
}

// Allowed reports whether path is within a section of role's menu.
func Allowed(role enums.Role, path string) bool {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	for _, item := range menus[role] {
		if path == item.Path || strings.HasPrefix(path, item.Path+"/") {
			return true
		}
	}
	return false
}
