package entity

// Report status constants
const (
	ReportStatusSubmitted       = "SUBMITTED"
	ReportStatusManagerApproved = "MANAGER_APPROVED"
	ReportStatusFinanceApproved = "FINANCE_APPROVED"
	ReportStatusRejected        = "REJECTED"
)

// Approval stage constants
const (
	StageManager = "MANAGER"
	StageFinance = "FINANCE"
)

// Approval status constants
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
)

// Decision actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Roles carried by the X-User-Role header
const (
	RoleEmployee   = "employee"
	RoleManager    = "manager"
	RoleFinance    = "finance"
	RoleSuperAdmin = "super_admin"
)

// Expense category codes
const (
	CategoryTravel   = "travel"
	CategoryLodging  = "lodging"
	CategoryMeals    = "meals"
	CategoryMileage  = "mileage"
	CategorySupplies = "supplies"
	CategoryTraining = "training"
	CategoryOther    = "other"
)

// ExpenseCategory describes a reportable category.
type ExpenseCategory struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// DefaultCategories is the category list offered to the report builder.
var DefaultCategories = []ExpenseCategory{
	{Code: CategoryTravel, Label: "Travel", Description: "Flights, rail, rideshare, and taxis."},
	{Code: CategoryLodging, Label: "Lodging", Description: "Hotels and overnight stays."},
	{Code: CategoryMeals, Label: "Meals", Description: "Meals during business travel."},
	{Code: CategoryMileage, Label: "Mileage", Description: "Personal vehicle mileage."},
	{Code: CategorySupplies, Label: "Supplies", Description: "Office or field supplies."},
	{Code: CategoryTraining, Label: "Training", Description: "Registration fees and materials."},
	{Code: CategoryOther, Label: "Other", Description: "Anything not covered above."},
}

// IsKnownCategory reports whether code is one of DefaultCategories.
func IsKnownCategory(code string) bool {
	for _, c := range DefaultCategories {
		if c.Code == code {
			return true
		}
	}
	return false
}

// IsValidStage reports whether stage is MANAGER or FINANCE.
func IsValidStage(stage string) bool {
	return stage == StageManager || stage == StageFinance
}
