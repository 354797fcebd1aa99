package accounts

import "strings"

// SystemRole tags groups and accounts that reports and postings resolve by
// meaning rather than by code. The zero value means untagged.
type SystemRole string

const (
	RoleNone SystemRole = ""

	// Group roles.
	RoleCurrentAssets          SystemRole = "current_assets"
	RoleSundryDebtors          SystemRole = "sundry_debtors"
	RoleStudents               SystemRole = "students"
	RoleBankAccount            SystemRole = "bank_account"
	RoleCashAccount            SystemRole = "cash_account"
	RoleNonCurrentAssets       SystemRole = "non_current_assets"
	RoleFixedAssets            SystemRole = "fixed_assets"
	RoleSecurityDeposits       SystemRole = "security_deposits"
	RoleShortTermInvestments   SystemRole = "short_term_investments"
	RoleLongTermInvestments    SystemRole = "long_term_investments"
	RoleOfficeEquipment        SystemRole = "office_equipment"
	RoleCurrentLiabilities     SystemRole = "current_liabilities"
	RoleSundryCreditors        SystemRole = "sundry_creditors"
	RoleNonCurrentLiabilities  SystemRole = "non_current_liabilities"
	RoleLongTermLoans          SystemRole = "long_term_loans"
	RoleStaffLoans             SystemRole = "staff_loans"
	RoleLoansLiability         SystemRole = "loans_liability"
	RoleProvisions             SystemRole = "provisions"
	RoleCapital                SystemRole = "capital"
	RoleReservesSurplus        SystemRole = "reserves_surplus"
	RoleDirectIncome           SystemRole = "direct_income"
	RoleFeeIncome              SystemRole = "fee_income"
	RoleIndirectIncome         SystemRole = "indirect_income"
	RoleOtherIncome            SystemRole = "other_income"
	RoleDirectExpenses         SystemRole = "direct_expenses"
	RoleAcademicExpenses       SystemRole = "academic_expenses"
	RoleIndirectExpenses       SystemRole = "indirect_expenses"
	RoleAdministrativeExpenses SystemRole = "administrative_expenses"
	RoleOperationalExpenses    SystemRole = "operational_expenses"
	RoleMarketingExpenses      SystemRole = "marketing_expenses"
	RoleFinancialExpenses      SystemRole = "financial_expenses"
	RoleSpecialAccounts        SystemRole = "special_accounts"
	RoleAdjustmentAccounts     SystemRole = "adjustment_accounts"

	// Account roles.
	RoleCashOnHand               SystemRole = "cash_on_hand"
	RoleMainBankAccount          SystemRole = "main_bank_account"
	RoleFeesReceivable           SystemRole = "fees_receivable"
	RoleTuitionFee               SystemRole = "tuition_fee"
	RoleTeachingStaffSalary      SystemRole = "teaching_staff_salary"
	RoleNonTeachingSalary        SystemRole = "non_teaching_salary"
	RoleCampusRent               SystemRole = "campus_rent"
	RoleElectricityExpense       SystemRole = "electricity_expense"
	RoleRoundingOff              SystemRole = "rounding_off"
	RoleSuspenseAccount          SystemRole = "suspense_account"
	RoleOpeningBalanceAdjustment SystemRole = "opening_balance_adjustment"
)

// ParseSystemRole normalises stored or imported role markers.
func ParseSystemRole(raw string) (SystemRole, bool) {
	role := SystemRole(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether r is RoleNone or a known role.
func (r SystemRole) Valid() bool {
	switch r {
	case RoleNone,
		RoleCurrentAssets, RoleSundryDebtors, RoleStudents, RoleBankAccount, RoleCashAccount,
		RoleNonCurrentAssets, RoleFixedAssets, RoleSecurityDeposits, RoleShortTermInvestments,
		RoleLongTermInvestments, RoleOfficeEquipment, RoleCurrentLiabilities, RoleSundryCreditors,
		RoleNonCurrentLiabilities, RoleLongTermLoans, RoleStaffLoans, RoleLoansLiability,
		RoleProvisions, RoleCapital, RoleReservesSurplus, RoleDirectIncome, RoleFeeIncome,
		RoleIndirectIncome, RoleOtherIncome, RoleDirectExpenses, RoleAcademicExpenses,
		RoleIndirectExpenses, RoleAdministrativeExpenses, RoleOperationalExpenses,
		RoleMarketingExpenses, RoleFinancialExpenses, RoleSpecialAccounts, RoleAdjustmentAccounts,
		RoleCashOnHand, RoleMainBankAccount, RoleFeesReceivable, RoleTuitionFee,
		RoleTeachingStaffSalary, RoleNonTeachingSalary, RoleCampusRent, RoleElectricityExpense,
		RoleRoundingOff, RoleSuspenseAccount, RoleOpeningBalanceAdjustment:
		return true
	}
	return false
}

// IsCash reports whether the role marks cash or bank balances.
func (r SystemRole) IsCash() bool {
	switch r {
	case RoleCashAccount, RoleBankAccount, RoleCashOnHand, RoleMainBankAccount:
		return true
	}
	return false
}

// IsReceivable reports whether the role marks near-cash receivables.
func (r SystemRole) IsReceivable() bool {
	switch r {
	case RoleSundryDebtors, RoleStudents, RoleFeesReceivable:
		return true
	}
	return false
}

// Activity is a cash-flow statement category.
type Activity string

const (
	ActivityOperating Activity = "operating"
	ActivityInvesting Activity = "investing"
	ActivityFinancing Activity = "financing"
)

// Activity returns the cash-flow category a role forces, if any.
func (r SystemRole) Activity() (Activity, bool) {
	switch r {
	case RoleShortTermInvestments, RoleLongTermInvestments, RoleOfficeEquipment, RoleFixedAssets:
		return ActivityInvesting, true
	case RoleLongTermLoans, RoleStaffLoans, RoleCapital, RoleLoansLiability:
		return ActivityFinancing, true
	}
	return "", false
}

// Bucket splits income and expense into trading and non-trading sections.
type Bucket string

const (
	BucketDirect   Bucket = "direct"
	BucketIndirect Bucket = "indirect"
)

// Bucket returns the profit-and-loss bucket a role forces, if any.
func (r SystemRole) Bucket() (Bucket, bool) {
	switch r {
	case RoleDirectIncome, RoleFeeIncome, RoleDirectExpenses, RoleAcademicExpenses:
		return BucketDirect, true
	case RoleIndirectIncome, RoleOtherIncome, RoleIndirectExpenses, RoleAdministrativeExpenses,
		RoleOperationalExpenses, RoleMarketingExpenses, RoleFinancialExpenses:
		return BucketIndirect, true
	}
	return "", false
}
