package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// utf8BOM makes spreadsheet applications detect the CSV encoding correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader is the fixed 9-column export layout.
var csvHeader = []string{
	"Account #", "Porto Address", "EOA Address", "EOA Private Key",
	"Created At", "Balance", "Block Number", "Transactions", "Note",
}

// exportAccount is the wire form of one account in both export formats.
// EOAPrivateKey only ever carries the redacted prefix, never the full secret.
type exportAccount struct {
	AccountNumber int      `json:"accountNumber"`
	PortoAddress  string   `json:"portoAddress"`
	EOAAddress    string   `json:"eoaAddress"`
	EOAPrivateKey string   `json:"eoaPrivateKey"`
	CreatedAt     string   `json:"createdAt"`
	Balance       string   `json:"balance"`
	BlockNumber   uint64   `json:"blockNumber"`
	Transactions  []string `json:"transactions"`
	Note          string   `json:"note"`
}

// exportDocument is the top-level JSON export shape.
type exportDocument struct {
	ExportDate    string          `json:"exportDate"`
	TotalAccounts int             `json:"totalAccounts"`
	Accounts      []exportAccount `json:"accounts"`
}

// ExportService serializes stored accounts to CSV/JSON and imports either
// format back, appending to (never replacing) the store.
type ExportService struct {
	accounts driven.AccountStore
	network  string
	now      func() time.Time
}

// NewExportService creates an ExportService. network tags imported records
// that carry no network of their own.
func NewExportService(accounts driven.AccountStore, network string) *ExportService {
	return &ExportService{accounts: accounts, network: network, now: time.Now}
}

// CSVFilename returns the date-stamped download name for the CSV export.
func (e *ExportService) CSVFilename() string {
	return fmt.Sprintf("porto_accounts_%s.csv", e.now().UTC().Format("2006-01-02"))
}

// JSONFilename returns the date-stamped download name for the JSON export.
func (e *ExportService) JSONFilename() string {
	return fmt.Sprintf("porto_accounts_%s.json", e.now().UTC().Format("2006-01-02"))
}

// ExportCSV writes all stored accounts as a UTF-8 CSV with a leading BOM.
func (e *ExportService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := e.exportRecords(ctx)
	if err != nil {
		return err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.AccountNumber),
			r.PortoAddress,
			r.EOAAddress,
			r.EOAPrivateKey,
			r.CreatedAt,
			r.Balance,
			strconv.FormatUint(r.BlockNumber, 10),
			strings.Join(r.Transactions, "; "),
			r.Note,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// ExportJSON writes all stored accounts as the JSON export document.
func (e *ExportService) ExportJSON(ctx context.Context, w io.Writer) error {
	records, err := e.exportRecords(ctx)
	if err != nil {
		return err
	}

	doc := exportDocument{
		ExportDate:    e.now().UTC().Format(time.RFC3339),
		TotalAccounts: len(records),
		Accounts:      records,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export JSON: %w", err)
	}
	return nil
}

func (e *ExportService) exportRecords(ctx context.Context) ([]exportAccount, error) {
	accounts, err := e.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	records := make([]exportAccount, 0, len(accounts))
	for i, a := range accounts {
		note := a.Note
		if note == "" {
			note = defaultNote
		}
		records = append(records, exportAccount{
			AccountNumber: i + 1,
			PortoAddress:  a.Address,
			EOAAddress:    a.OwnerAddress,
			EOAPrivateKey: model.RedactKey(a.OwnerKeyRedacted),
			CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
			Balance:       a.Balance,
			BlockNumber:   a.BlockNumber,
			Transactions:  a.Actions,
			Note:          note,
		})
	}
	return records, nil
}

// Import reads an export file in either format (detected by content) and
// appends its accounts to the store. Returns the number imported.
func (e *ExportService) Import(ctx context.Context, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("import file is empty")
	}

	var records []exportAccount
	if trimmed[0] == '{' {
		records, err = parseJSONImport(trimmed)
	} else {
		records, err = parseCSVImport(trimmed)
	}
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, rec := range records {
		if rec.PortoAddress == "" {
			continue
		}
		account := e.toAccount(rec)
		if err := e.accounts.Upsert(ctx, account); err != nil {
			return imported, fmt.Errorf("store imported account %s: %w", account.Address, err)
		}
		imported++
	}

	slog.Info("accounts imported", "count", imported)
	return imported, nil
}

// toAccount maps a wire record onto the domain model, substituting defaults
// for missing optional fields. Any key material is re-redacted on the way in.
func (e *ExportService) toAccount(rec exportAccount) model.Account {
	createdAt := e.now().UTC()
	if rec.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
			createdAt = t.UTC()
		}
	}

	balance := rec.Balance
	if balance == "" {
		balance = "0"
	}
	note := rec.Note
	if note == "" {
		note = defaultNote
	}

	return model.Account{
		Address:          rec.PortoAddress,
		OwnerAddress:     rec.EOAAddress,
		OwnerKeyRedacted: model.RedactKey(rec.EOAPrivateKey),
		Network:          e.network,
		BlockNumber:      rec.BlockNumber,
		Balance:          balance,
		Actions:          rec.Transactions,
		Note:             note,
		CreatedAt:        createdAt,
	}
}

func parseJSONImport(data []byte) ([]exportAccount, error) {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import JSON: %w", err)
	}
	return doc.Accounts, nil
}

func parseCSVImport(data []byte) ([]exportAccount, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1 // tolerate short rows, defaults fill the gaps

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse import CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("import CSV has no data rows")
	}

	records := make([]exportAccount, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		rec := exportAccount{}
		get := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		rec.AccountNumber, _ = strconv.Atoi(get(0))
		rec.PortoAddress = get(1)
		rec.EOAAddress = get(2)
		rec.EOAPrivateKey = get(3)
		rec.CreatedAt = get(4)
		rec.Balance = get(5)
		rec.BlockNumber, _ = strconv.ParseUint(get(6), 10, 64)
		if txs := get(7); txs != "" {
			rec.Transactions = strings.Split(txs, "; ")
		}
		rec.Note = get(8)
		records = append(records, rec)
	}
	return records, nil
}
