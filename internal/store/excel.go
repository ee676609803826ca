// Package store persists registry records to a two-sheet xlsx workbook:
// an append-only raw listing log and an upserted reconciled sheet.
package store

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/tkummer/hrfetch/internal/model"
)

const (
	rawSheet        = "Current output"
	reconciledSheet = "Goal output"
)

var rawHeader = []interface{}{
	"Company Name", "Court", "City", "Status", "Registry Number", "Documents", "History",
}

var reconciledHeader = []interface{}{
	"Company Name", "Court", "City", "Status", "Designation", "Legal Form",
	"Street", "House Number", "Postal Code", "City", "Given Name", "Family Name",
	"Sex", "Birth Date", "Business Purpose", "Representation Authority",
}

// Identity key columns on the reconciled sheet: Company Name and Given Name.
const (
	colName      = 0
	colGivenName = 10
)

// RegistryStore writes to one workbook file. The workbook format has no
// concurrent-write support, so a single mutex serializes every upsert
// across worker goroutines.
type RegistryStore struct {
	mu   sync.Mutex
	path string
}

// New returns a store writing to the workbook at path. The file is created
// on first upsert if it does not exist.
func New(path string) *RegistryStore {
	return &RegistryStore{path: path}
}

// Path returns the workbook location.
func (s *RegistryStore) Path() string { return s.path }

// Upsert appends every listing record to the raw sheet unconditionally and
// upserts every merged record into the reconciled sheet by (name, given
// name). Re-running with identical inputs leaves the reconciled sheet
// unchanged; differing field values from a later run win.
func (s *RegistryStore) Upsert(listings []model.ListingRecord, merged []model.MergedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.appendListings(f, listings); err != nil {
		return err
	}
	if err := s.upsertMerged(f, merged); err != nil {
		return err
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// open loads the workbook, creating it with both sheets and headers when
// absent. An existing but unreadable file is corruption and fatal.
func (s *RegistryStore) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return s.create()
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrCorruptStore, s.path, err)
	}
	return f, nil
}

func (s *RegistryStore) create() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), rawSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(reconciledSheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(rawSheet, "A1", &rawHeader); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reconciledSheet, "A1", &reconciledHeader); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *RegistryStore) appendListings(f *excelize.File, listings []model.ListingRecord) error {
	rows, err := f.GetRows(rawSheet)
	if err != nil {
		return err
	}

	next := len(rows) + 1
	for _, rec := range listings {
		row := rawRow(rec)
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(rawSheet, cell, &row); err != nil {
			return err
		}
		next++
	}
	return nil
}

func (s *RegistryStore) upsertMerged(f *excelize.File, merged []model.MergedRecord) error {
	rows, err := f.GetRows(reconciledSheet)
	if err != nil {
		return err
	}

	next := len(rows) + 1
	for _, rec := range merged {
		row := reconciledRow(rec)
		target := findIdentityRow(rows, rec.Identity())
		if target == 0 {
			target = next
			next++
			// The in-memory snapshot grows too, so a later record in the
			// same batch can still find this one.
			rows = append(rows, stringRow(row))
		} else {
			rows[target-1] = stringRow(row)
		}

		cell, err := excelize.CoordinatesToCellName(1, target)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reconciledSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// findIdentityRow scans the reconciled rows (header excluded) for the
// identity key and returns its 1-based row number, or 0 when absent.
// GetRows trims trailing empty cells, so a missing cell reads as "".
func findIdentityRow(rows [][]string, key model.IdentityKey) int {
	for i := 1; i < len(rows); i++ {
		if cellAt(rows[i], colName) == key.Name && cellAt(rows[i], colGivenName) == key.GivenName {
			return i + 1
		}
	}
	return 0
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func rawRow(rec model.ListingRecord) []interface{} {
	documents := "nein"
	if rec.DocumentsAvailable {
		documents = "ja"
	}
	return []interface{}{
		rec.Name, rec.Court, rec.Seat, rec.Status, "", documents, historyText(rec.History),
	}
}

func reconciledRow(rec model.MergedRecord) []interface{} {
	return []interface{}{
		rec.Name, rec.Court, rec.Seat, rec.Status,
		rec.Designation, rec.LegalForm, rec.Street, rec.HouseNumber,
		rec.PostalCode, rec.City, rec.GivenName, rec.FamilyName,
		rec.Sex, rec.BirthDate, rec.BusinessPurpose, rec.RepresentationAuthority,
	}
}

func historyText(history []model.HistoryEntry) string {
	var parts []string
	for _, h := range history {
		parts = append(parts, fmt.Sprintf("%s (%s)", h.Event, h.Date))
	}
	return strings.Join(parts, "; ")
}

func stringRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
