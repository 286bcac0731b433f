package port

import (
	"io"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ReceiptLink is the URL chosen for a receipt in an export. Fresh is false
// when a new link could not be issued and the stored URL was used instead.
type ReceiptLink struct {
	URL   string
	Fresh bool
}

// ExportData is everything one export archive is built from
type ExportData struct {
	GeneratedAt time.Time
	Start       time.Time
	End         time.Time
	Employees   []string
	Reports     []*entity.Report
	Links       map[int64]ReceiptLink
}

// ExportWriter renders export data into an archive stream
type ExportWriter interface {
	Write(w io.Writer, data ExportData) error
}
