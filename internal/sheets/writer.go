package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/go-gota/gota/series"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer publishes tables to a spreadsheet, one tab per table.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Create the Sheets service
	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, config, logger), nil
}

// NewWriterWithService creates a writer around an existing Sheets service.
func NewWriterWithService(service *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Name implements export.Sink.
func (w *Writer) Name() string { return "sheets" }

// WriteTables replaces the contents of the configured tables' tabs.
func (w *Writer) WriteTables(ctx context.Context, tables []dataset.Table) error {
	selected := selectTables(tables, w.config.Tables)
	if len(selected) == 0 {
		w.logger.Info("no tables to publish", "configured", w.config.Tables)
		return nil
	}

	titles := make([]string, len(selected))
	for i, t := range selected {
		titles[i] = t.Name
	}

	spreadsheetID, tabs, err := w.getOrCreateSpreadsheet(ctx, titles)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, table := range selected {
		sheetID, err := w.ensureSheet(ctx, spreadsheetID, tabs, table.Name)
		if err != nil {
			return err
		}

		// Clear existing data
		if clearErr := w.clearSheet(ctx, spreadsheetID, table.Name); clearErr != nil {
			return fmt.Errorf("failed to clear sheet %s: %w", table.Name, clearErr)
		}

		values := prepareTableValues(table)
		err = common.WithRetry(ctx, func() error {
			return w.writeData(ctx, spreadsheetID, table.Name, values)
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", table.Name, err)
		}

		// Apply formatting if enabled
		if w.config.EnableFormatting {
			err = common.WithRetry(ctx, func() error {
				return w.applyFormatting(ctx, spreadsheetID, sheetID, table)
			}, retryOpts)
			if err != nil {
				w.logger.Warn("failed to apply formatting", "sheet", table.Name, "error", err)
			}
		}

		w.logger.Info("published table",
			"spreadsheet_id", spreadsheetID,
			"sheet", table.Name,
			"rows_written", len(values))
	}

	return nil
}

// selectTables keeps the tables named in names, in the order given by names.
func selectTables(tables []dataset.Table, names []string) []dataset.Table {
	byName := make(map[string]dataset.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	out := make([]dataset.Table, 0, len(names))
	for _, n := range names {
		if t, ok := byName[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		// Use service account authentication
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet returns the spreadsheet ID and its tabs by title.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context, titles []string) (string, map[string]int64, error) {
	if w.config.SpreadsheetID != "" {
		// Verify the spreadsheet exists and is accessible
		existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, sheetIDs(existing.Sheets), nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
	}
	for _, title := range titles {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: title},
		})
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, sheetIDs(created.Sheets), nil
}

func sheetIDs(list []*sheets.Sheet) map[string]int64 {
	ids := make(map[string]int64, len(list))
	for _, s := range list {
		if s.Properties != nil {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return ids
}

// ensureSheet adds a tab named title when the spreadsheet does not have one yet.
func (w *Writer) ensureSheet(ctx context.Context, spreadsheetID string, tabs map[string]int64, title string) (int64, error) {
	if id, ok := tabs[title]; ok {
		return id, nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("unable to add sheet %s: empty reply", title)
	}

	id := resp.Replies[0].AddSheet.Properties.SheetId
	tabs[title] = id
	w.logger.Debug("added sheet", "sheet", title, "sheet_id", id)
	return id, nil
}

// clearSheet clears all data from the tab.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, title string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, sheetRange(title, ""), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// sheetRange builds an A1 range on the tab; an empty cell means the whole tab.
func sheetRange(title, cell string) string {
	quoted := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if cell == "" {
		return quoted
	}
	return quoted + "!" + cell
}

// prepareTableValues renders the header and rows. Missing values become empty cells.
func prepareTableValues(table dataset.Table) [][]any {
	names := table.Frame.Names()
	header := make([]any, len(names))
	for i, n := range names {
		header[i] = n
	}

	rows := dataset.Values(table.Frame)
	values := make([][]any, 0, len(rows)+1)
	values = append(values, header)
	for _, row := range rows {
		for i, v := range row {
			if v == nil {
				row[i] = ""
			}
		}
		values = append(values, row)
	}
	return values
}

// writeData writes the data to the tab.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	// Write in batches to avoid API limits
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := sheetRange(title, fmt.Sprintf("A%d", i+1))
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()

		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, classifyAPIError(err))
		}

		w.logger.Debug("wrote batch", "sheet", title, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// classifyAPIError marks quota errors as rate limits and other client
// errors as permanent so WithRetry stops early on them.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return &common.RetryableError{Err: err, Retryable: true}
	}
}

// applyFormatting applies formatting to one tab.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, table dataset.Table) error {
	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: formattingRequests(sheetID, table),
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}

// formattingRequests bolds and freezes the header, formats float columns and resizes columns.
func formattingRequests(sheetID int64, table dataset.Table) []*sheets.Request {
	names := table.Frame.Names()
	cols := int64(len(names))
	totalRows := int64(table.Frame.Nrow() + 1)

	requests := []*sheets.Request{
		// Format header
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   cols,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
	}

	for i, n := range names {
		if table.Frame.Col(n).Type() != series.Float {
			continue
		}
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1,
					EndRowIndex:      totalRows,
					StartColumnIndex: int64(i),
					EndColumnIndex:   int64(i + 1),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "NUMBER",
							Pattern: "#,##0.00",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	requests = append(requests,
		// Auto-resize columns
		&sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   cols,
				},
			},
		},
		// Freeze header row
		&sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	)

	return requests
}
