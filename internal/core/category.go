package core

import (
	"fmt"
	"strings"
)

var (
	ExpenseCategories = []string{
		"vivienda", "alimentación", "transporte", "salud",
		"educación", "entretenimiento", "ropa", "otros",
	}
	SavingCategories = []string{
		"fondo de emergencia", "jubilación", "vacaciones", "mantenimiento", "otros",
	}
	InvestmentCategories = []string{
		"fondo de inversión", "acciones", "bienes raíces", "cripto", "negocio", "otros",
	}
)

// NormalizeCategory lowercases and trims a category label.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateCategory enforces the closed category set of each kind. Income
// carries no category.
func ValidateCategory(k Kind, category string) error {
	switch k {
	case KindIncome:
		if category != "" {
			return fmt.Errorf("%w: income has no category", ErrInvalidCategory)
		}
		return nil
	case KindExpense:
		return oneOf(category, ExpenseCategories)
	case KindSaving:
		return oneOf(category, SavingCategories)
	case KindInvestment:
		return oneOf(category, InvestmentCategories)
	}
	return ErrInvalidKind
}

func oneOf(category string, allowed []string) error {
	for _, a := range allowed {
		if category == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %q must be one of %v", ErrInvalidCategory, category, allowed)
}
