package export

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by the Excel writer
const SheetName = "Permits"

// ctxCheckInterval is how many rows a writer emits between context checks
const ctxCheckInterval = 1000

// writeFunc streams one export format into w
type writeFunc func(ctx context.Context, w io.Writer) error

// writeAtomic writes into a temp file next to path and renames it into place
// on success. On any failure the temp file is removed and path is untouched.
func writeAtomic(ctx context.Context, path string, write writeFunc) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if err = write(ctx, bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o640); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// csvWriter writes the table as RFC 4180 CSV with a header row
func csvWriter(table *models.Table) writeFunc {
	return func(ctx context.Context, w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(table.Columns); err != nil {
			return err
		}
		for i, row := range table.Rows {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

// excelWriter writes the table into a single worksheet with a bold header
func excelWriter(table *models.Table) writeFunc {
	return func(ctx context.Context, w io.Writer) error {
		f := excelize.NewFile()
		defer f.Close()

		if err := f.SetSheetName("Sheet1", SheetName); err != nil {
			return err
		}
		headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}

		sw, err := f.NewStreamWriter(SheetName)
		if err != nil {
			return err
		}

		header := make([]interface{}, len(table.Columns))
		for i, col := range table.Columns {
			header[i] = col
		}
		if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
			return err
		}

		for i, row := range table.Rows {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := sw.SetRow(cell, values); err != nil {
				return err
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}

		_, err = f.WriteTo(w)
		return err
	}
}

// pdfWriter renders the table as a landscape report. Rows beyond maxRows are
// left out and a note says so.
func pdfWriter(table *models.Table, title string, maxRows int) writeFunc {
	return func(ctx context.Context, w io.Writer) error {
		pdf := fpdf.New("L", "mm", "A4", "")
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetMargins(10, 10, 10)
		pdf.SetAutoPageBreak(true, 10)

		pageW, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		colW := (pageW - left - right) / float64(max(len(table.Columns), 1))
		const lineH = 6.0

		header := func() {
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetFillColor(230, 230, 230)
			for _, col := range table.Columns {
				pdf.CellFormat(colW, lineH, tr(col), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Helvetica", "", 7)
		}

		pdf.SetHeaderFunc(func() {
			if pdf.PageNo() > 1 {
				header()
			}
		})

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(2)
		header()

		rows := table.Rows
		truncated := false
		if maxRows > 0 && len(rows) > maxRows {
			rows = rows[:maxRows]
			truncated = true
		}
		for i, row := range rows {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for _, v := range row {
				pdf.CellFormat(colW, lineH, tr(fitCell(pdf, v, colW)), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		if truncated {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, lineH, fmt.Sprintf("Showing %d of %d rows. Use CSV or Excel for the full data set.", maxRows, len(table.Rows)), "", 1, "L", false, 0, "")
		}

		if err := pdf.Error(); err != nil {
			return err
		}
		return pdf.Output(w)
	}
}

// fitCell shortens s until it fits a cell of width w
func fitCell(pdf *fpdf.Fpdf, s string, w float64) string {
	const pad = 2.0
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > w-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// zipWriter archives the given files under their base names
func zipWriter(paths ...string) writeFunc {
	return func(ctx context.Context, w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addToZip(zw, p); err != nil {
				return err
			}
		}
		return zw.Close()
	}
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}
