package seed

import "github.com/medistore/medistore/internal/privileges"

// Default role codes.
const (
	RoleAdmin        = "ADMIN"
	RoleStoreManager = "STORE_MANAGER"
	RolePharmacist   = "PHARMACIST"
	RoleCashier      = "CASHIER"
)

// RoleDefinition is a built-in role. AllPrivileges roles receive every
// registered privilege, including ones added after the first boot.
type RoleDefinition struct {
	Code          string
	Name          string
	Description   string
	AllPrivileges bool
	Privileges    []string
}

// DefaultRoles returns the system roles seeded on every start.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Code:          RoleAdmin,
			Name:          "Administrator",
			Description:   "Full access to every store and setting",
			AllPrivileges: true,
		},
		{
			Code:        RoleStoreManager,
			Name:        "Store Manager",
			Description: "Runs a single store: staff, stock, sales and reports",
			Privileges: []string{
				privileges.ViewUsers, privileges.CreateUsers, privileges.EditUsers, privileges.ManageRoles,
				privileges.ViewInventory, privileges.ManageInventory, privileges.AdjustStock,
				privileges.ViewSales, privileges.CreateSales, privileges.RefundSales,
				privileges.ViewPrescriptions,
				privileges.ViewReports, privileges.ExportReports,
				privileges.ViewStores, privileges.ViewDrugs, privileges.ViewAuditLogs,
			},
		},
		{
			Code:        RolePharmacist,
			Name:        "Pharmacist",
			Description: "Dispenses prescriptions and maintains the formulary",
			Privileges: []string{
				privileges.ViewInventory, privileges.ManageInventory,
				privileges.ViewPrescriptions, privileges.ManagePrescriptions, privileges.DispensePrescriptions,
				privileges.ViewSales, privileges.CreateSales,
				privileges.ViewDrugs, privileges.ManageDrugs,
			},
		},
		{
			Code:        RoleCashier,
			Name:        "Cashier",
			Description: "Rings up sales at the counter",
			Privileges: []string{
				privileges.ViewInventory,
				privileges.ViewSales, privileges.CreateSales,
				privileges.ViewPrescriptions, privileges.ViewDrugs,
			},
		},
	}
}
