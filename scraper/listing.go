package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/lmstrack/models"
)

// Selectors of the course-management view.
const (
	selTable              = "table"
	selPaginationControls = ".paginationControls"
	selReportFrame        = "#legacy-wrapper-iframe"
	selCounter            = ".span12.player-stats-counter"
)

// minCells is the cell count of a course row: a leading selection column
// followed by Title, Type, Creation Date, Days Since Creation, Training Materials.
const minCells = 6

var (
	rowMatcher     = cascadia.MustCompile("tr")
	cellMatcher    = cascadia.MustCompile("td")
	counterMatcher = cascadia.MustCompile(selCounter)
)

// ParseCourseTable extracts one CourseRow per data row of the course table.
// Rows with fewer than minCells cells (headers, spacers) are skipped. The
// identifier and the display columns always come from the same <tr>.
func ParseCourseTable(html string) ([]models.CourseRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "failed to parse course table", err)
	}

	var rows []models.CourseRow
	doc.FindMatcher(rowMatcher).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenMatcher(cellMatcher)
		if cells.Length() < minCells {
			return
		}
		id, _ := tr.Attr("data-id")
		rows = append(rows, models.CourseRow{
			ID:                strings.TrimSpace(id),
			Title:             cellText(cells.Eq(1)),
			Type:              cellText(cells.Eq(2)),
			CreationDate:      cellText(cells.Eq(3)),
			DaysSinceCreation: cellText(cells.Eq(4)),
			TrainingMaterials: cellText(cells.Eq(5)),
		})
	})
	return rows, nil
}

// IDs returns the non-empty row identifiers in table order.
func IDs(rows []models.CourseRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// cellText returns the rendered text of a cell with whitespace collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
