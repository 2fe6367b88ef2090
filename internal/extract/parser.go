package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// quantityWindow is the number of lines after the anchor line that may
	// carry the row's quantity.
	quantityWindow = 2
	maxGuessQty    = 100
)

var (
	nsnRe      = regexp.MustCompile(`\b(\d{8,9})\b`)
	descRe     = regexp.MustCompile(`[A-Z][A-Z\s,\-]{9,}`)
	authQtyRe  = regexp.MustCompile(`(?i)Auth\s+Qty\s*[:\-]?\s*(\d+)`)
	smallNumRe = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// Row is a candidate BOM row rebuilt from recognized text.
type Row struct {
	NSN                   string  `json:"nsn"`
	Description           string  `json:"description"`
	Qty                   int     `json:"qty"`
	NSNConfidence         float64 `json:"nsn_confidence"`
	DescriptionConfidence float64 `json:"description_confidence"`
	QtyConfidence         float64 `json:"qty_confidence"`
}

// ParseRows rebuilds candidate rows from one page of recognized lines.
//
// A row is anchored on the first 8-9 digit token of a line. Its description
// is the longest uppercase run on that line or, failing that, on the next
// line. Rows without a description are dropped. The quantity comes from an
// "Auth Qty" label in the anchor line plus the next two, else from the last
// small number in that window.
func ParseRows(lines []string, conf map[string]float64) []Row {
	var rows []Row
	for i, line := range lines {
		m := nsnRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		nsn := m[1]

		desc := longestDescription(line)
		if desc == "" && i+1 < len(lines) {
			desc = longestDescription(lines[i+1])
		}
		if desc == "" {
			continue
		}

		end := i + 1 + quantityWindow
		if end > len(lines) {
			end = len(lines)
		}
		qty, qtyConf := findQuantity(strings.Join(lines[i:end], " "), nsn)

		_, nsnConf := ValidateNSN(nsn)
		rows = append(rows, Row{
			NSN:                   nsn,
			Description:           desc,
			Qty:                   qty,
			NSNConfidence:         nsnConf,
			DescriptionConfidence: DescriptionConfidence(desc, conf),
			QtyConfidence:         qtyConf,
		})
	}
	return rows
}

// longestDescription returns the longest trimmed uppercase run in line. Ties
// go to the leftmost run.
func longestDescription(line string) string {
	var best string
	for _, run := range descRe.FindAllString(line, -1) {
		run = strings.TrimSpace(run)
		if len(run) > len(best) {
			best = run
		}
	}
	return best
}

func findQuantity(window, nsn string) (int, float64) {
	if m := authQtyRe.FindStringSubmatch(window); m != nil {
		if ok, qty, c := ValidateQuantity(m[1]); ok {
			return qty, c
		}
	}

	nums := smallNumRe.FindAllStringSubmatch(window, -1)
	for i := len(nums) - 1; i >= 0; i-- {
		num := nums[i][1]
		if num == nsn {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 || n > maxGuessQty {
			continue
		}
		_, qty, c := ValidateQuantity(num)
		return qty, c
	}
	return 1, DefaultQtyConfidence
}
