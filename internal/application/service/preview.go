package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// BuildPreview renders a copy-ready plain-text summary of a report
func BuildPreview(report *entity.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Expense Report: %s\n", report.ReportID)
	fmt.Fprintf(&b, "Employee: %s\n", report.EmployeeEmail)
	fmt.Fprintf(&b, "Manager: %s\n", report.ManagerEmail)
	if report.Period != "" {
		fmt.Fprintf(&b, "Period: %s\n", report.Period)
	}
	fmt.Fprintf(&b, "Finalized: %s\n", report.FinalizedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Status: %s\n", report.Status)

	b.WriteString("\nLine Items:\n")
	if len(report.Expenses) == 0 {
		b.WriteString("  - No expenses recorded yet.\n")
	}
	receiptsByExpense := make(map[int64][]string)
	for _, r := range report.Receipts {
		if r.ExpenseID != nil {
			receiptsByExpense[*r.ExpenseID] = append(receiptsByExpense[*r.ExpenseID], r.FileName)
		}
	}
	for _, e := range report.Expenses {
		line := fmt.Sprintf("  - %s | %s | %s | %s %s",
			e.IncurredAt.Format("2006-01-02"), e.Category, e.Description, e.Amount.StringFixed(2), e.Currency)
		if files := receiptsByExpense[e.ID]; len(files) > 0 {
			line += fmt.Sprintf(" (receipt: %s)", strings.Join(files, ", "))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nTotals:\n")
	fmt.Fprintf(&b, "  - Total: %s\n", report.Total().StringFixed(2))
	if totals := report.CategoryTotals(); len(totals) > 0 {
		b.WriteString("  - By category:\n")
		categories := make([]string, 0, len(totals))
		for c := range totals {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(&b, "      * %s: %s\n", c, totals[c].StringFixed(2))
		}
	}

	if len(report.Approvals) > 0 {
		b.WriteString("\nApprovals:\n")
		for _, a := range report.Approvals {
			line := fmt.Sprintf("  - %s: %s", a.Stage, a.Status)
			if a.DecidedBy != "" {
				line += " by " + a.DecidedBy
			}
			if a.Note != "" {
				line += " (" + a.Note + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
