package docx

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// HeightRule is the w:hRule of a table row.
type HeightRule string

const (
	HeightAuto    HeightRule = "auto"
	HeightAtLeast HeightRule = "atLeast"
	HeightExact   HeightRule = "exact"
)

// Geometry is the space available to an image placed at a Hit.
type Geometry struct {
	InTable     bool
	RowHeightMM float64 // 0 when the row declares no height
	HeightRule  HeightRule
	CellWidthMM float64 // 0 when the width cannot be determined
	Aspect      float64 // image height divided by width; 0 means square
}

// Measure reads row and cell geometry around h.
func Measure(h Hit) Geometry {
	g := Geometry{InTable: h.InTable()}
	if !g.InTable {
		return g
	}
	if trHeight := childW(childW(h.Row.El, "trPr"), "trHeight"); trHeight != nil {
		if v, err := strconv.Atoi(wAttr(trHeight, "val")); err == nil && v > 0 {
			g.RowHeightMM = TwipsToMM(v)
			g.HeightRule = HeightAtLeast
		}
		if rule := wAttr(trHeight, "hRule"); rule != "" {
			g.HeightRule = HeightRule(rule)
		}
	}
	g.CellWidthMM = cellWidthMM(h)
	return g
}

// cellWidthMM returns the declared dxa width of the cell, a pct width
// resolved against a dxa table width, or the sum of the grid columns the
// cell spans.
func cellWidthMM(h Hit) float64 {
	tcPr := childW(h.Cell.El, "tcPr")
	if tcW := childW(tcPr, "tcW"); tcW != nil {
		w := wAttr(tcW, "w")
		switch wAttr(tcW, "type") {
		case "dxa", "":
			if v, err := strconv.Atoi(w); err == nil && v > 0 {
				return TwipsToMM(v)
			}
		case "pct":
			if frac, ok := percent(w); ok {
				tblW := childW(childW(h.Table.El, "tblPr"), "tblW")
				if wAttr(tblW, "type") == "dxa" {
					if v, err := strconv.Atoi(wAttr(tblW, "w")); err == nil && v > 0 {
						return TwipsToMM(int(math.Round(float64(v) * frac)))
					}
				}
			}
		}
	}

	grid := childW(h.Table.El, "tblGrid")
	if grid == nil {
		return 0
	}
	var cols []int
	for _, gc := range childrenW(grid, "gridCol") {
		v, _ := strconv.Atoi(wAttr(gc, "w"))
		cols = append(cols, v)
	}

	start := 0
	if gb := childW(childW(h.Row.El, "trPr"), "gridBefore"); gb != nil {
		start, _ = strconv.Atoi(wAttr(gb, "val"))
	}
	for _, tc := range childrenW(h.Row.El, "tc") {
		if tc == h.Cell.El {
			break
		}
		start += gridSpan(tc)
	}

	total := 0
	for i := start; i < start+gridSpan(h.Cell.El) && i < len(cols); i++ {
		total += cols[i]
	}
	if total <= 0 {
		return 0
	}
	return TwipsToMM(total)
}

func gridSpan(tc *etree.Element) int {
	if gs := childW(childW(tc, "tcPr"), "gridSpan"); gs != nil {
		if v, err := strconv.Atoi(wAttr(gs, "val")); err == nil && v > 0 {
			return v
		}
	}
	return 1
}

// percent parses a pct width: fiftieths of a percent, or "NN%".
func percent(s string) (float64, bool) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v / 100, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, false
	}
	return float64(v) / 5000, true
}

// Fit bounds image sizes inside table cells.
type Fit struct {
	DefaultWidthMM float64 // used when a table gives no limits
	MinWidthMM     float64 // floor for any limit
	MarginMM       float64 // minimum safety margin
	MarginRatio    float64 // safety margin as a fraction of the limit
}

// DefaultFit is the fit used by EffectiveWidth and EnsureCellFits.
var DefaultFit = Fit{
	DefaultWidthMM: 40,
	MinWidthMM:     5,
	MarginMM:       2,
	MarginRatio:    0.08,
}

// SafetyMargin returns the clearance kept inside a limit of sizeMM.
func (f Fit) SafetyMargin(sizeMM float64) float64 {
	return math.Max(f.MarginMM, sizeMM*f.MarginRatio)
}

func (f Fit) limit(candidateMM float64) float64 {
	return math.Max(f.MinWidthMM, candidateMM-f.SafetyMargin(candidateMM))
}

// EffectiveWidth bounds requestedMM by the row height and cell width of g.
// Outside tables the request is returned unchanged.
func (f Fit) EffectiveWidth(requestedMM float64, g Geometry) float64 {
	if requestedMM <= 0 {
		requestedMM = f.DefaultWidthMM
	}
	if !g.InTable {
		return requestedMM
	}

	aspect := g.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	var limits []float64
	if g.RowHeightMM > 0 {
		limits = append(limits, f.limit(g.RowHeightMM/aspect))
	}
	if g.CellWidthMM > 0 {
		limits = append(limits, f.limit(g.CellWidthMM))
	}
	if len(limits) == 0 {
		return math.Min(requestedMM, f.DefaultWidthMM)
	}

	width := requestedMM
	for _, l := range limits {
		width = math.Min(width, l)
	}
	return width
}

// EffectiveWidth is DefaultFit.EffectiveWidth.
func EffectiveWidth(requestedMM float64, g Geometry) float64 {
	return DefaultFit.EffectiveWidth(requestedMM, g)
}

// EnsureCellFits adjusts the row and cell around h so an image imageHeightMM
// tall is not clipped: an exact row height is relaxed to atLeast, the row
// grows to the image plus its safety margin, and the cell content is
// centred vertically when no alignment is set. Each step runs on its own;
// failures are logged and never returned.
func (f Fit) EnsureCellFits(h Hit, imageHeightMM float64, log zerolog.Logger) {
	if !h.InTable() {
		return
	}
	guard(log, "relax_height_rule", func() error {
		trHeight := childW(childW(h.Row.El, "trPr"), "trHeight")
		if trHeight != nil && wAttr(trHeight, "hRule") == string(HeightExact) {
			setWAttr(trHeight, "hRule", string(HeightAtLeast))
		}
		return nil
	})
	guard(log, "grow_row", func() error {
		if imageHeightMM <= 0 {
			return nil
		}
		need := MMToTwips(imageHeightMM + f.SafetyMargin(imageHeightMM))
		trHeight := ensureTrHeight(h.Row.El)
		current := 0
		if v := wAttr(trHeight, "val"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("row height %q: %w", v, err)
			}
			current = n
		}
		if current < need {
			setWAttr(trHeight, "val", strconv.Itoa(need))
			setWAttr(trHeight, "hRule", string(HeightAtLeast))
		}
		return nil
	})
	guard(log, "center_cell", func() error {
		tcPr := childW(h.Cell.El, "tcPr")
		if tcPr == nil {
			tcPr = etree.NewElement(wTag(h.Cell.El, "tcPr"))
			h.Cell.El.InsertChildAt(0, tcPr)
		}
		if vAlign := childW(tcPr, "vAlign"); vAlign != nil && wAttr(vAlign, "val") != "" {
			return nil
		}
		vAlign := childW(tcPr, "vAlign")
		if vAlign == nil {
			vAlign = insertOrdered(tcPr, wTag(tcPr, "vAlign"), "hideMark", "headers", "cellIns", "cellDel", "cellMerge", "tcPrChange")
		}
		setWAttr(vAlign, "val", "center")
		return nil
	})
}

// EnsureCellFits is DefaultFit.EnsureCellFits.
func EnsureCellFits(h Hit, imageHeightMM float64, log zerolog.Logger) {
	DefaultFit.EnsureCellFits(h, imageHeightMM, log)
}

func guard(log zerolog.Logger, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("step", step).Interface("panic", r).Msg("docx: cell adjustment failed")
		}
	}()
	if err := fn(); err != nil {
		log.Warn().Str("step", step).Err(err).Msg("docx: cell adjustment failed")
	}
}

// ensureTrHeight returns the row's w:trHeight, creating w:trPr and
// w:trHeight in schema order when missing.
func ensureTrHeight(tr *etree.Element) *etree.Element {
	trPr := childW(tr, "trPr")
	if trPr == nil {
		trPr = etree.NewElement(wTag(tr, "trPr"))
		idx := 0
		if ex := childW(tr, "tblPrEx"); ex != nil {
			idx = ex.Index() + 1
		}
		tr.InsertChildAt(idx, trPr)
	}
	if trHeight := childW(trPr, "trHeight"); trHeight != nil {
		return trHeight
	}
	return insertOrdered(trPr, wTag(trPr, "trHeight"), "tblHeader", "tblCellSpacing", "jc", "hidden", "ins", "del", "trPrChange")
}

// insertOrdered creates tag in parent before the first child named in
// following, or at the end.
func insertOrdered(parent *etree.Element, tag string, following ...string) *etree.Element {
	el := etree.NewElement(tag)
	for _, c := range parent.ChildElements() {
		for _, f := range following {
			if isW(c, f) {
				parent.InsertChildAt(c.Index(), el)
				return el
			}
		}
	}
	parent.AddChild(el)
	return el
}
