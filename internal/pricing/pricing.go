// Package pricing computes the total price of a configured product.
package pricing

// Extras thresholds and the discount (percent) they unlock on the extras price.
const (
	smallBundleExtras   = 3
	smallBundleDiscount = 10
	largeBundleExtras   = 5
	largeBundleDiscount = 15
)

// CalculatePrice returns base reduced by discount percent, plus special unchanged,
// plus extra reduced by the bundle discount for the number of extras chosen.
func CalculatePrice(base, special, extra float64, extras int, discount float64) float64 {
	return base*(100-discount)/100 + special + extra*(100-AddonDiscount(extras))/100
}

// AddonDiscount returns the percent taken off the extras price: 15 for five or
// more extras, 10 for three or four, otherwise 0.
func AddonDiscount(extras int) float64 {
	switch {
	case extras >= largeBundleExtras:
		return largeBundleDiscount
	case extras >= smallBundleExtras:
		return smallBundleDiscount
	default:
		return 0
	}
}
