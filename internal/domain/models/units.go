package models

import "fmt"

// Unit is a measurement unit from the fixed construction pay-item vocabulary.
type Unit string

const (
	UnitNone       Unit = ""
	UnitEach       Unit = "Each"
	UnitLumpSum    Unit = "Lump Sum"
	UnitFeet       Unit = "Feet"
	UnitLinearFeet Unit = "Linear Feet"
	UnitSquareFeet Unit = "Square Feet"
	UnitSquareYard Unit = "Square Yard"
	UnitCubicFeet  Unit = "Cubic Feet"
	UnitCubicYard  Unit = "Cubic Yard"
	UnitInch       Unit = "Inch"
	UnitMile       Unit = "Mile"
	UnitAcre       Unit = "Acre"
	UnitTon        Unit = "Ton"
	UnitPound      Unit = "Pound"
	UnitGallon     Unit = "Gallon"
	UnitHour       Unit = "Hour"
	UnitDay        Unit = "Day"
	UnitStation    Unit = "Station"
)

// Units lists every accepted unit in display order, excluding UnitNone.
var Units = []Unit{
	UnitEach, UnitLumpSum, UnitFeet, UnitLinearFeet, UnitSquareFeet,
	UnitSquareYard, UnitCubicFeet, UnitCubicYard, UnitInch, UnitMile,
	UnitAcre, UnitTon, UnitPound, UnitGallon, UnitHour, UnitDay, UnitStation,
}

// Valid reports whether u belongs to the vocabulary. UnitNone is valid and
// marks a dimensionless value.
func (u Unit) Valid() bool {
	if u == UnitNone {
		return true
	}
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// VariableType classifies how a template variable is filled.
type VariableType string

const (
	VariableInput    VariableType = "input"
	VariableOutput   VariableType = "output"
	VariableConstant VariableType = "constant"
)

// Normalize maps the empty type to VariableInput.
func (t VariableType) Normalize() VariableType {
	if t == "" {
		return VariableInput
	}
	return t
}

// Validate rejects types outside input/output/constant.
func (t VariableType) Validate() error {
	switch t.Normalize() {
	case VariableInput, VariableOutput, VariableConstant:
		return nil
	default:
		return fmt.Errorf("unknown variable type %q", string(t))
	}
}
