package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/pkg/config"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
	"github.com/osa-scan/dresscode-api/pkg/export"
)

// Export formats accepted by the listing export endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportHeaders = []string{"Offense #", "Student", "Year Level", "Course", "Violation", "Occurred At", "Status", "Resolved By", "Resolved At", "Notes"}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders violation listings as CSV or PDF downloads.
type ExportService struct {
	query  *QueryService
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	cfg    config.ExportsConfig
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(query *QueryService, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		query:  query,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		cfg:    cfg,
		logger: logger,
	}
}

// Export renders the filtered listing in the requested format. The row cap
// keeps a runaway filter from building an unbounded document.
func (s *ExportService) Export(ctx context.Context, format string, filter models.ViolationFilter) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	maxRows := s.cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 5000
	}
	filter.Page = 1
	filter.PageSize = 200

	var records []models.ViolationRecord
	for len(records) < maxRows {
		page, err := s.query.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if len(page.Records) < filter.PageSize {
			break
		}
		filter.Page++
	}
	if len(records) > maxRows {
		records = records[:maxRows]
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, rec := range records {
		dataset.Rows = append(dataset.Rows, exportRow(rec))
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("violations-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	default:
		content, err := s.pdf.Render(dataset, "Dress Code Violations")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("violations-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	}
}

func exportRow(rec models.ViolationRecord) map[string]string {
	row := map[string]string{
		"Offense #":   strconv.Itoa(rec.OffenseOrdinal),
		"Student":     rec.StudentName,
		"Year Level":  rec.YearLevel,
		"Course":      rec.Course,
		"Violation":   rec.ViolationType,
		"Occurred At": rec.OccurredAt.Format(time.RFC3339),
		"Status":      string(rec.Status),
		"Notes":       rec.Notes,
	}
	if rec.ResolvedBy != nil {
		row["Resolved By"] = *rec.ResolvedBy
	}
	if rec.ResolvedAt != nil {
		row["Resolved At"] = rec.ResolvedAt.Format(time.RFC3339)
	}
	return row
}
