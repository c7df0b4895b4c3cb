package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func forecastTable() dataset.Table {
	return dataset.Table{
		Name: model.TableForecast,
		Frame: dataframe.New(
			series.New([]string{"Dairy", "Dairy", "Dairy"}, series.String, "category"),
			series.New([]string{"2024-01-31", "2024-02-29", "2024-03-31"}, series.String, "timestamp"),
			series.New([]float64{10.5, 11, 12.25}, series.Float, "point_estimate"),
			series.New([]float64{9, 10, 11}, series.Float, "lower_bound"),
			series.New([]float64{12, 12, 13.5}, series.Float, "upper_bound"),
		),
	}
}

func TestPrepareTableValues(t *testing.T) {
	table := dataset.Table{
		Name: model.TableSales,
		Frame: dataframe.New(
			series.New([]int{1, 2}, series.Int, "order_id"),
			series.New([]string{"Milk", "NaN"}, series.String, "product_name"),
			series.New([]float64{25.5, 30}, series.Float, "price"),
		),
	}

	values := prepareTableValues(table)

	require.Len(t, values, 3)
	assert.Equal(t, []any{"order_id", "product_name", "price"}, values[0])
	assert.Equal(t, []any{1, "Milk", 25.5}, values[1])
	assert.Equal(t, []any{2, "", 30.0}, values[2])
}

func TestSelectTables(t *testing.T) {
	tables := []dataset.Table{
		{Name: model.TableSales},
		{Name: model.TableForecast},
		{Name: model.TableDailyDemand},
	}

	got := selectTables(tables, []string{model.TableForecast, "missing", model.TableSales})

	require.Len(t, got, 2)
	assert.Equal(t, model.TableForecast, got[0].Name)
	assert.Equal(t, model.TableSales, got[1].Name)
	assert.Empty(t, selectTables(tables, nil))
}

func TestSheetRange(t *testing.T) {
	assert.Equal(t, "'combined_category_forecast'", sheetRange("combined_category_forecast", ""))
	assert.Equal(t, "'daily'!A3", sheetRange("daily", "A3"))
	assert.Equal(t, "'it''s'!A1", sheetRange("it's", "A1"))
}

func TestFormattingRequests(t *testing.T) {
	requests := formattingRequests(42, forecastTable())

	// header + three float columns + resize + freeze
	require.Len(t, requests, 6)

	header := requests[0].RepeatCell
	require.NotNil(t, header)
	assert.Equal(t, int64(42), header.Range.SheetId)
	assert.Equal(t, int64(5), header.Range.EndColumnIndex)
	assert.True(t, header.Cell.UserEnteredFormat.TextFormat.Bold)

	var numberColumns []int64
	for _, r := range requests[1:4] {
		require.NotNil(t, r.RepeatCell)
		assert.Equal(t, int64(4), r.RepeatCell.Range.EndRowIndex)
		numberColumns = append(numberColumns, r.RepeatCell.Range.StartColumnIndex)
	}
	assert.Equal(t, []int64{2, 3, 4}, numberColumns)

	require.NotNil(t, requests[5].UpdateSheetProperties)
	assert.Equal(t, int64(1), requests[5].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)
}

// fakeSheets records the calls the writer makes against the Sheets REST API.
type fakeSheets struct {
	updates    map[string][][]any
	batchCalls []sheets.BatchUpdateSpreadsheetRequest
	cleared    []string
	mu         sync.Mutex
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","sheets":[{"properties":{"sheetId":0,"title":"Sheet1"}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.batchCalls = append(f.batchCalls, req)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","replies":[{"addSheet":{"properties":{"sheetId":42,"title":"combined_category_forecast"}}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear"))
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
			http.Error(w, `{"error":{"code":400,"message":"bad input option"}}`, http.StatusBadRequest)
			return
		}
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.updates[rng] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func TestWriter_WriteTables(t *testing.T) {
	fake := &fakeSheets{updates: make(map[string][][]any)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	service, err := sheets.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	config := DefaultConfig()
	config.SpreadsheetID = "sheet-1"
	config.BatchSize = 2
	config.RetryAttempts = 1
	writer := NewWriterWithService(service, config, slog.Default())
	assert.Equal(t, "sheets", writer.Name())

	other := dataset.Table{Name: model.TableSales, Frame: dataset.Empty("order_id")}
	err = writer.WriteTables(ctx, []dataset.Table{other, forecastTable()})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.Equal(t, []string{"'combined_category_forecast'"}, fake.cleared)

	require.Len(t, fake.updates, 2, "four rows in batches of two")
	first := fake.updates["'combined_category_forecast'!A1"]
	require.Len(t, first, 2)
	assert.Equal(t, []any{"category", "timestamp", "point_estimate", "lower_bound", "upper_bound"}, first[0])
	second := fake.updates["'combined_category_forecast'!A3"]
	require.Len(t, second, 2)
	assert.Equal(t, "2024-03-31", second[1][1])

	// add sheet, then formatting on the new sheet id
	require.Len(t, fake.batchCalls, 2)
	require.NotNil(t, fake.batchCalls[0].Requests[0].AddSheet)
	assert.Equal(t, model.TableForecast, fake.batchCalls[0].Requests[0].AddSheet.Properties.Title)
	assert.Equal(t, int64(42), fake.batchCalls[1].Requests[0].RepeatCell.Range.SheetId)
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		err       error
		name      string
		retryable bool
	}{
		{name: "quota", err: &googleapi.Error{Code: http.StatusTooManyRequests}, retryable: true},
		{name: "server error", err: &googleapi.Error{Code: http.StatusServiceUnavailable}, retryable: true},
		{name: "bad request", err: &googleapi.Error{Code: http.StatusBadRequest}, retryable: false},
		{name: "forbidden", err: &googleapi.Error{Code: http.StatusForbidden}, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyAPIError(tt.err)
			assert.Equal(t, tt.retryable, common.IsRetryable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classifyAPIError(plain))
}

func TestWriter_WriteTablesNothingSelected(t *testing.T) {
	writer := NewWriterWithService(nil, DefaultConfig(), nil)

	err := writer.WriteTables(context.Background(), []dataset.Table{{Name: model.TableSales}})
	assert.NoError(t, err)
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	_, err := NewWriter(context.Background(), DefaultConfig(), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestMockWriter(t *testing.T) {
	mock := NewMockWriter()
	tables := []dataset.Table{forecastTable()}

	require.NoError(t, mock.WriteTables(context.Background(), tables))

	boom := errors.New("quota exceeded")
	mock.SetWriteError(boom)
	assert.ErrorIs(t, mock.WriteTables(context.Background(), tables), boom)

	calls := mock.GetWriteCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{model.TableForecast}, calls[0].Tables)
	assert.ErrorIs(t, calls[1].Error, boom)

	mock.Reset()
	assert.Empty(t, mock.GetWriteCalls())
	assert.Zero(t, mock.WriteCallCount)
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "sheets.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}

	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Expiry.Equal(token.Expiry))

	// A valid token is returned without contacting Google.
	got, err := GetOrCreateToken(context.Background(), OAuth2Config{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
}

func TestAuthenticateOAuth2Interactive_RequiresClient(t *testing.T) {
	_, err := AuthenticateOAuth2Interactive(context.Background(), OAuth2Config{})
	assert.Error(t, err)
}
