package domain

import (
	"time"

	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
)

// Resource names a countable, tier-capped record type.
type Resource string

const (
	ResourceBankAccounts          Resource = "bank_accounts"
	ResourceCreditCards           Resource = "credit_cards"
	ResourceDebitCards            Resource = "debit_cards"
	ResourceExpensesPerMonth      Resource = "expenses_per_month"
	ResourceIncomePerMonth        Resource = "income_per_month"
	ResourceGoals                 Resource = "goals"
	ResourceBills                 Resource = "bills"
	ResourceStocks                Resource = "stocks"
	ResourceBudgets               Resource = "budgets"
	ResourceRecurringTransactions Resource = "recurring_transactions"
)

// Feature names a gated area of the product.
type Feature string

const (
	FeatureDashboard             Feature = "dashboard"
	FeatureBankAccounts          Feature = "bank_accounts"
	FeatureCreditCards           Feature = "credit_cards"
	FeatureExpenses              Feature = "expenses"
	FeatureIncome                Feature = "income"
	FeatureSavings               Feature = "savings"
	FeatureGoals                 Feature = "goals"
	FeatureBills                 Feature = "bills"
	FeatureExportCSV             Feature = "export_csv"
	FeatureStocks                Feature = "stocks"
	FeatureBudget                Feature = "budget"
	FeatureRecurringTransactions Feature = "recurring_transactions"
	FeatureExportPDF             Feature = "export_pdf"
)

// Unbounded marks a limit with no cap.
const Unbounded int64 = -1

// CountSource tells the counter where a resource lives.
type CountSource struct {
	Table   string
	Monthly bool
}

// Resources is ordered for stable usage listings.
var Resources = []Resource{
	ResourceBankAccounts,
	ResourceCreditCards,
	ResourceDebitCards,
	ResourceExpensesPerMonth,
	ResourceIncomePerMonth,
	ResourceGoals,
	ResourceBills,
	ResourceStocks,
	ResourceBudgets,
	ResourceRecurringTransactions,
}

var countSources = map[Resource]CountSource{
	ResourceBankAccounts:          {Table: "bank_accounts"},
	ResourceCreditCards:           {Table: "credit_cards"},
	ResourceDebitCards:            {Table: "debit_cards"},
	ResourceExpensesPerMonth:      {Table: "expenses", Monthly: true},
	ResourceIncomePerMonth:        {Table: "income", Monthly: true},
	ResourceGoals:                 {Table: "financial_goals"},
	ResourceBills:                 {Table: "bill_reminders"},
	ResourceStocks:                {Table: "stocks"},
	ResourceBudgets:               {Table: "budgets"},
	ResourceRecurringTransactions: {Table: "recurring_transactions"},
}

var tierLimits = map[userdomain.Tier]map[Resource]int64{
	userdomain.TierFree: {
		ResourceBankAccounts:          2,
		ResourceCreditCards:           2,
		ResourceDebitCards:            2,
		ResourceExpensesPerMonth:      50,
		ResourceIncomePerMonth:        5,
		ResourceGoals:                 1,
		ResourceBills:                 3,
		ResourceStocks:                0,
		ResourceBudgets:               0,
		ResourceRecurringTransactions: 0,
	},
	userdomain.TierPremium: {
		ResourceBankAccounts:          Unbounded,
		ResourceCreditCards:           Unbounded,
		ResourceDebitCards:            Unbounded,
		ResourceExpensesPerMonth:      Unbounded,
		ResourceIncomePerMonth:        Unbounded,
		ResourceGoals:                 Unbounded,
		ResourceBills:                 Unbounded,
		ResourceStocks:                Unbounded,
		ResourceBudgets:               Unbounded,
		ResourceRecurringTransactions: Unbounded,
	},
}

var freeFeatures = map[Feature]struct{}{
	FeatureDashboard:    {},
	FeatureBankAccounts: {},
	FeatureCreditCards:  {},
	FeatureExpenses:     {},
	FeatureIncome:       {},
	FeatureSavings:      {},
	FeatureGoals:        {},
	FeatureBills:        {},
	FeatureExportCSV:    {},
}

// AllFeatures lists every gated feature in display order.
var AllFeatures = []Feature{
	FeatureDashboard,
	FeatureBankAccounts,
	FeatureCreditCards,
	FeatureExpenses,
	FeatureIncome,
	FeatureSavings,
	FeatureGoals,
	FeatureBills,
	FeatureExportCSV,
	FeatureStocks,
	FeatureBudget,
	FeatureRecurringTransactions,
	FeatureExportPDF,
}

func SourceFor(resource Resource) (CountSource, bool) {
	src, ok := countSources[resource]
	return src, ok
}

// LimitFor returns the cap for resource under tier. Unknown tiers fall back to free.
func LimitFor(tier userdomain.Tier, resource Resource) (int64, bool) {
	limits, ok := tierLimits[tier]
	if !ok {
		limits = tierLimits[userdomain.TierFree]
	}
	limit, ok := limits[resource]
	return limit, ok
}

// EffectiveTier is the tier whose limits apply right now. A premium row past
// its expiry counts as free even before it is demoted in storage.
func EffectiveTier(u *userdomain.User, now time.Time) userdomain.Tier {
	if u == nil || u.SubscriptionTier != userdomain.TierPremium || u.PremiumExpired(now) {
		return userdomain.TierFree
	}
	return userdomain.TierPremium
}

// HasFeature decides feature access from the user row alone.
func HasFeature(u *userdomain.User, feature Feature, now time.Time) bool {
	if u == nil || u.SubscriptionStatus != userdomain.StatusActive {
		return false
	}
	if u.SubscriptionTier == userdomain.TierPremium {
		return !u.PremiumExpired(now)
	}
	_, ok := freeFeatures[feature]
	return ok
}
