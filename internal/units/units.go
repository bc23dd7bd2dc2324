// Package units provides shared constants and validation for coordinate units
package units

// Unit constants
const (
	Angstrom  = "angstrom"
	Nanometer = "nm"
	Picometer = "pm"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Angstrom, Nanometer, Picometer}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "angstrom, nm, pm"
}

// ToAngstrom converts a coordinate from the source units to Angstroms.
// Grid math is done in Angstroms throughout; structure files in other
// units are normalized on read.
func ToAngstrom(v float64, sourceUnits string) float64 {
	switch sourceUnits {
	case Nanometer:
		return v * 10.0 // 1 nm = 10 Å
	case Picometer:
		return v * 0.01 // 100 pm = 1 Å
	case Angstrom:
		return v // no conversion needed
	default:
		return v // default to Angstroms if unknown unit
	}
}
