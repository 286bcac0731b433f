package export

import (
	"strconv"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Table is one tabular section of the archive, written both as CSV and as a sheet
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ReportsTable renders one row per report with both approval stages
func ReportsTable(reports []*entity.Report) Table {
	t := Table{
		Name: "reports",
		Header: []string{
			"report_id", "employee_email", "manager_email", "period", "finalized_at", "status",
			"total", "expense_count",
			"manager_status", "manager_decided_by", "manager_decided_at", "manager_note",
			"finance_status", "finance_decided_by", "finance_decided_at", "finance_note",
			"reimbursable_total", "non_reimbursable_total",
		},
	}
	for _, r := range reports {
		row := []string{
			r.ReportID, r.EmployeeEmail, r.ManagerEmail, r.Period, formatTime(r.FinalizedAt), r.Status,
			r.Total().StringFixed(2), strconv.Itoa(len(r.Expenses)),
		}
		row = append(row, approvalColumns(r.Approval(entity.StageManager))...)
		row = append(row, approvalColumns(r.Approval(entity.StageFinance))...)
		row = append(row, r.ReimbursableTotal().StringFixed(2), r.NonReimbursableTotal().StringFixed(2))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ExpensesTable renders every expense line of every report
func ExpensesTable(reports []*entity.Report) Table {
	t := Table{
		Name: "expenses",
		Header: []string{
			"report_id", "expense_id", "external_id", "category", "description",
			"amount", "currency", "incurred_at", "merchant", "reimbursable", "metadata",
		},
	}
	for _, r := range reports {
		for _, e := range r.Expenses {
			t.Rows = append(t.Rows, []string{
				r.ReportID, strconv.FormatInt(e.ID, 10), e.ExternalID, e.Category, e.Description,
				e.Amount.StringFixed(2), e.Currency, formatTime(e.IncurredAt),
				e.Merchant(), strconv.FormatBool(e.IsReimbursable()), string(e.Metadata),
			})
		}
	}
	return t
}

// ReceiptsTable renders every receipt with the link resolved for it
func ReceiptsTable(reports []*entity.Report, links map[int64]port.ReceiptLink) Table {
	t := Table{
		Name: "receipts",
		Header: []string{
			"report_id", "receipt_id", "expense_id", "client_expense_id", "file_name",
			"content_type", "file_size", "checksum", "provider", "storage_key",
			"uploaded_at", "url", "url_fresh",
		},
	}
	for _, r := range reports {
		for _, rc := range r.Receipts {
			expenseID := ""
			if rc.ExpenseID != nil {
				expenseID = strconv.FormatInt(*rc.ExpenseID, 10)
			}
			link, ok := links[rc.ID]
			if !ok {
				link = port.ReceiptLink{URL: rc.Storage.URL}
			}
			t.Rows = append(t.Rows, []string{
				r.ReportID, strconv.FormatInt(rc.ID, 10), expenseID, rc.ClientExpenseID, rc.FileName,
				rc.ContentType, strconv.FormatInt(rc.FileSize, 10), rc.Checksum, rc.Storage.Provider, rc.Storage.Key,
				formatTime(rc.UploadedAt), link.URL, strconv.FormatBool(link.Fresh),
			})
		}
	}
	return t
}

func approvalColumns(a *entity.Approval) []string {
	if a == nil {
		return []string{"", "", "", ""}
	}
	decidedAt := ""
	if a.DecidedAt != nil {
		decidedAt = formatTime(*a.DecidedAt)
	}
	return []string{a.Status, a.DecidedBy, decidedAt, a.Note}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
