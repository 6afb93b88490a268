package strategy

// =============================================================================
// CONDITION GRADES
// =============================================================================

// ConditionGradeTable maps a condition grade to its price multiplier.
type ConditionGradeTable interface {
	MultiplierFor(grade Grade) (float64, bool)
}

// GradeTable is an in-memory ConditionGradeTable.
type GradeTable map[Grade]float64

func (t GradeTable) MultiplierFor(grade Grade) (float64, bool) {
	m, ok := t[grade]
	return m, ok
}

// DefaultGradeTable returns the standard premium multipliers.
func DefaultGradeTable() GradeTable {
	return GradeTable{
		GradeA: 1.30,
		GradeB: 1.15,
		GradeC: 0.90,
		GradeD: 0.75,
	}
}

// =============================================================================
// MULTIPLIERS
// =============================================================================

const (
	DefaultPurchasePrice = 300000.0
	TargetROI            = 0.03

	investmentYears    = 5
	utilizationRate    = 0.30
	operatingCostRate  = 0.40
	daysPerYear        = 365
	daysPerMonth       = 30
	maxConfidence      = 95
	baseConfidence     = 70
	confidenceStep     = 10
	minCompetitorCount = 5
)

func mileageMultiplier(km float64) float64 {
	switch {
	case km < 50000:
		return 1.05
	case km < 100000:
		return 1.00
	case km < 150000:
		return 0.95
	default:
		return 0.90
	}
}

func ageMultiplier(months int) float64 {
	switch {
	case months < 12:
		return 1.05
	case months < 36:
		return 1.00
	case months < 60:
		return 0.95
	default:
		return 0.90
	}
}
