package docx

import "math"

// Layout units. WordprocessingML stores lengths in twips (1/1440 inch) and
// DrawingML in EMU (1/914400 inch).
const (
	MMPerInch    = 25.4
	TwipsPerInch = 1440
	EMUPerInch   = 914400
	DefaultDPI   = 96
)

// MMToTwips converts millimeters to twips, rounded to the nearest twip.
func MMToTwips(mm float64) int {
	return int(math.Round(mm / MMPerInch * TwipsPerInch))
}

// TwipsToMM converts twips to millimeters.
func TwipsToMM(twips int) float64 {
	return float64(twips) / TwipsPerInch * MMPerInch
}

// MMToEMU converts millimeters to EMU.
func MMToEMU(mm float64) int64 {
	return int64(math.Round(mm / MMPerInch * EMUPerInch))
}

// EMUToMM converts EMU to millimeters.
func EMUToMM(emu int64) float64 {
	return float64(emu) / EMUPerInch * MMPerInch
}

// PixelsToMM converts a pixel length at dpi to millimeters. A non-positive
// dpi means DefaultDPI.
func PixelsToMM(px int, dpi float64) float64 {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return float64(px) / dpi * MMPerInch
}
