package privileges

// Privilege codes compiled into the default catalog.
const (
	ViewUsers   = "VIEW_USERS"
	CreateUsers = "CREATE_USERS"
	EditUsers   = "EDIT_USERS"
	DeleteUsers = "DELETE_USERS"
	ManageRoles = "MANAGE_ROLES"

	ViewInventory   = "VIEW_INVENTORY"
	ManageInventory = "MANAGE_INVENTORY"
	AdjustStock     = "ADJUST_STOCK"

	ViewSales   = "VIEW_SALES"
	CreateSales = "CREATE_SALES"
	RefundSales = "REFUND_SALES"

	ViewPrescriptions     = "VIEW_PRESCRIPTIONS"
	ManagePrescriptions   = "MANAGE_PRESCRIPTIONS"
	DispensePrescriptions = "DISPENSE_PRESCRIPTIONS"

	ViewReports   = "VIEW_REPORTS"
	ExportReports = "EXPORT_REPORTS"

	SystemSettings = "SYSTEM_SETTINGS"
	ViewAuditLogs  = "VIEW_AUDIT_LOGS"

	ViewStores   = "VIEW_STORES"
	ManageStores = "MANAGE_STORES"

	ViewDrugs   = "VIEW_DRUGS"
	ManageDrugs = "MANAGE_DRUGS"
)

// DefaultCatalog returns the privileges every deployment starts with.
// Names are derived from the codes.
func DefaultCatalog() []Input {
	return []Input{
		{Code: ViewUsers, Category: CategoryUserManagement, Description: "View staff accounts"},
		{Code: CreateUsers, Category: CategoryUserManagement, Description: "Create staff accounts"},
		{Code: EditUsers, Category: CategoryUserManagement, Description: "Edit staff accounts and their role"},
		{Code: DeleteUsers, Category: CategoryUserManagement, Description: "Deactivate or remove staff accounts"},
		{Code: ManageRoles, Category: CategoryUserManagement, Description: "Review role definitions"},

		{Code: ViewInventory, Category: CategoryInventory, Description: "View stock levels"},
		{Code: ManageInventory, Category: CategoryInventory, Description: "Receive and transfer stock"},
		{Code: AdjustStock, Category: CategoryInventory, Description: "Post stock adjustments and write-offs"},

		{Code: ViewSales, Category: CategorySales, Description: "View sales and receipts"},
		{Code: CreateSales, Category: CategorySales, Description: "Ring up sales at the counter"},
		{Code: RefundSales, Category: CategorySales, Description: "Refund or void completed sales"},

		{Code: ViewPrescriptions, Category: CategoryPrescriptions, Description: "View prescriptions"},
		{Code: ManagePrescriptions, Category: CategoryPrescriptions, Description: "Create and edit prescriptions"},
		{Code: DispensePrescriptions, Category: CategoryPrescriptions, Description: "Dispense prescribed medication"},

		{Code: ViewReports, Category: CategoryReports, Description: "View business reports"},
		{Code: ExportReports, Category: CategoryReports, Description: "Export reports to PDF or spreadsheet"},

		{Code: SystemSettings, Category: CategorySystem, Description: "Manage system settings, roles and privileges"},
		{Code: ViewAuditLogs, Category: CategorySystem, Description: "Read the audit trail"},

		{Code: ViewStores, Category: CategoryStoreManagement, Description: "View store branches"},
		{Code: ManageStores, Category: CategoryStoreManagement, Description: "Create and edit store branches"},

		{Code: ViewDrugs, Category: CategoryDrugManagement, Description: "View the drug formulary"},
		{Code: ManageDrugs, Category: CategoryDrugManagement, Description: "Maintain the drug formulary"},
	}
}
