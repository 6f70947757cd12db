package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// shortIDLen is how much of an id tables show. Commands accept any unique
// prefix.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(header))
	return tw
}

func renderQueue(items []models.QueueItem) string {
	tw := newTable("#", "ID", "File", "Size", "Format", "Status", "Job", "Note")
	for i, it := range items {
		tw.AppendRow(table.Row{
			i + 1,
			shortID(it.ID),
			it.File.Name,
			humanize.IBytes(uint64(it.File.Size)),
			formatCell(it.Options),
			statusCell(it),
			shortID(it.JobID),
			it.Error,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 8, WidthMax: 40},
	})
	return tw.Render()
}

func formatCell(o models.ConversionOptions) string {
	parts := []string{string(o.TargetFormat)}
	if o.OCR != nil && *o.OCR {
		parts = append(parts, "ocr")
	}
	if o.Quality != nil {
		parts = append(parts, fmt.Sprintf("q%d", *o.Quality))
	}
	if o.PageRange != nil && *o.PageRange != "" {
		parts = append(parts, "p"+*o.PageRange)
	}
	return strings.Join(parts, " ")
}

func statusCell(it models.QueueItem) string {
	if it.Status == models.StatusUploading {
		return fmt.Sprintf("%s %d%%", it.Status, it.Progress)
	}
	return string(it.Status)
}

func renderJobs(records []*models.JobRecord, now time.Time) string {
	tw := newTable("Job", "File", "Format", "Status", "Updated", "Error")
	for _, r := range records {
		tw.AppendRow(table.Row{
			r.JobID,
			r.FileName,
			string(r.TargetFormat),
			string(r.Status),
			humanize.RelTime(r.UpdatedAt, now, "ago", "from now"),
			r.Error,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 6, WidthMax: 40}})
	return tw.Render()
}
