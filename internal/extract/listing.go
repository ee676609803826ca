// Package extract parses the register's two source shapes: the HTML
// results grid and the XML document export.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tkummer/hrfetch/internal/model"
)

// Named cell slots of the results grid. Positions are fixed by the known
// grid layout; header text is never consulted.
const (
	slotCourt     = 1
	slotName      = 2
	slotSeat      = 3
	slotStatus    = 4
	slotDocuments = 5
	slotHistory   = 8 // first (event, date) pair; pairs continue to the right
)

// minCells is the number of cells a data row must have for the fixed
// slots to be addressable.
const minCells = 6

// ExtractRows parses a results page into listing records, one per grid row
// carrying the data-ri row-index marker, in document order. A marked row
// with fewer than six cells is schema drift and fails the whole page.
func ExtractRows(resultsHTML string) ([]model.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsHTML))
	if err != nil {
		return nil, err
	}

	var records []model.ListingRecord
	var rowErr error

	doc.Find("tr[data-ri]").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td").Map(func(_ int, c *goquery.Selection) string {
			return strings.TrimSpace(c.Text())
		})
		if len(cells) < minCells {
			rowErr = &model.MalformedRowError{Row: i, Cells: len(cells)}
			return false
		}

		rec := model.ListingRecord{
			Court:              cells[slotCourt],
			Name:               cells[slotName],
			Seat:               cells[slotSeat],
			Status:             cells[slotStatus],
			DocumentsAvailable: documentsAvailable(cells[slotDocuments]),
		}

		// History cells pair up (event, date). A trailing event without a
		// date cell is dropped so history stays even-paired.
		for j := slotHistory; j+1 < len(cells); j += 2 {
			rec.History = append(rec.History, model.HistoryEntry{
				Event: cells[j],
				Date:  cells[j+1],
			})
		}

		records = append(records, rec)
		return true
	})

	if rowErr != nil {
		return nil, rowErr
	}
	return records, nil
}

func documentsAvailable(cell string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), "ja")
}
