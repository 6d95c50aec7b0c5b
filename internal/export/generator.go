// Package export generates permit exports on disk, sweeps expired files and
// guards downloads so users only ever reach their own directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Generator writes masked tables into <root>/<user_id>/ in one of the supported formats
type Generator struct {
	root       string
	timeout    time.Duration
	pdfMaxRows int
	now        func() time.Time
	log        zerolog.Logger
}

// NewGenerator creates a generator rooted at cfg.Root
func NewGenerator(cfg config.ExportConfig, log zerolog.Logger) *Generator {
	return &Generator{
		root:       cfg.Root,
		timeout:    cfg.Timeout,
		pdfMaxRows: cfg.PDFMaxRows,
		now:        time.Now,
		log:        log.With().Str("service", "export-generator").Logger(),
	}
}

// WithClock replaces the clock used for file name timestamps
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Root returns the export root directory
func (g *Generator) Root() string {
	return g.root
}

// Generate masks table for role and writes it as format. It returns the
// absolute path of the written file. Nothing is left at the final path when
// a writer fails.
func (g *Generator) Generate(ctx context.Context, table *models.Table, userID, baseName string, format models.ExportFormat, role string) (string, error) {
	if !models.ValidFormats[format] {
		return "", apperr.UnsupportedFormat(string(format))
	}
	if table == nil || table.Len() == 0 {
		return "", apperr.Validation("no data to export")
	}

	safeUser := Sanitize(userID)
	if safeUser == "" || safeUser != userID {
		return "", apperr.Validation("invalid user id")
	}
	safeBase := Sanitize(baseName)
	if safeBase == "" {
		return "", apperr.Validation("filename is required")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", apperr.ExportWrite(string(format), err)
	}
	dir := filepath.Join(root, safeUser)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", apperr.ExportWrite(string(format), err)
	}

	masked := Mask(table, role)
	at := g.now()
	title := Title(safeBase) + " Report"
	start := time.Now()

	formats := []models.ExportFormat{format}
	if format == models.FormatZIP {
		formats = []models.ExportFormat{models.FormatCSV, models.FormatPDF, models.FormatZIP}
	}
	paths, err := claimNames(dir, safeBase, at, formats...)
	if err != nil {
		return "", apperr.ExportWrite(string(format), err)
	}
	path := paths[len(paths)-1]

	switch format {
	case models.FormatCSV:
		err = writeAtomic(ctx, path, csvWriter(masked))
	case models.FormatExcel:
		err = writeAtomic(ctx, path, excelWriter(masked))
	case models.FormatPDF:
		err = writeAtomic(ctx, path, pdfWriter(masked, title, g.pdfMaxRows))
	case models.FormatZIP:
		err = g.writeZip(ctx, paths[0], paths[1], path, masked, title)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("export timed out")
		}
		for _, p := range paths {
			os.Remove(p)
		}
		g.log.Error().Err(err).
			Str("user_id", userID).
			Str("format", string(format)).
			Msg("Export writer failed")
		return "", apperr.ExportWrite(string(format), err)
	}

	g.log.Info().
		Str("user_id", userID).
		Str("format", string(format)).
		Str("path", path).
		Int("rows", masked.Len()).
		Int("columns", len(masked.Columns)).
		Dur("duration", time.Since(start)).
		Msg("Export written")

	return path, nil
}

// writeZip writes the CSV and PDF renditions side by side, then archives
// both. The two intermediate files stay next to the archive.
func (g *Generator) writeZip(ctx context.Context, csvPath, pdfPath, zipPath string, table *models.Table, title string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return writeAtomic(egCtx, csvPath, csvWriter(table))
	})
	eg.Go(func() error {
		return writeAtomic(egCtx, pdfPath, pdfWriter(table, title, g.pdfMaxRows))
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	return writeAtomic(ctx, zipPath, zipWriter(csvPath, pdfPath))
}

// maxNameAttempts bounds the suffixes tried for one base name and second
const maxNameAttempts = 1000

// claimNames reserves one export name per format for base at the given time.
// All formats share the same numeric suffix, the first one for which every
// name is free. Each name is created empty with O_EXCL so concurrent exports
// never pick the same file; writeAtomic later replaces the placeholder.
func claimNames(dir, base string, at time.Time, formats ...models.ExportFormat) ([]string, error) {
	for i := 1; i <= maxNameAttempts; i++ {
		name := base
		if i > 1 {
			name = base + "_" + strconv.Itoa(i)
		}

		paths := make([]string, 0, len(formats))
		taken := false
		for _, format := range formats {
			path := filepath.Join(dir, FileName(name, at, format))
			f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
			if err != nil {
				for _, p := range paths {
					os.Remove(p)
				}
				if errors.Is(err, fs.ErrExist) {
					taken = true
					break
				}
				return nil, err
			}
			f.Close()
			paths = append(paths, path)
		}
		if !taken {
			return paths, nil
		}
	}
	return nil, fmt.Errorf("no free name for %q after %d attempts", base, maxNameAttempts)
}
