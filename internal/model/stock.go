package model

// StockCapacity is the per-group ceiling of every ledger entry.
const StockCapacity = 50

// BloodGroups lists the labels accepted by the ledger.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func ValidBloodGroup(g string) bool {
	for _, bg := range BloodGroups {
		if bg == g {
			return true
		}
	}
	return false
}

// BloodStock maps blood group to available units for one blood bank.
type BloodStock map[string]int

// ClampUnits bounds v into [0, StockCapacity].
func ClampUnits(v int) int {
	if v < 0 {
		return 0
	}
	if v > StockCapacity {
		return StockCapacity
	}
	return v
}

// AddUnits returns current+delta bounded into [0, capacity]. The bounds are
// checked before adding, so any delta is safe.
func AddUnits(current, delta, capacity int) int {
	if current < 0 {
		current = 0
	}
	if current > capacity {
		current = capacity
	}
	if delta >= capacity-current {
		return capacity
	}
	if delta <= -current {
		return 0
	}
	return current + delta
}

type StockEntry struct {
	BloodGroup string `db:"blood_group" json:"blood_group"`
	Units      int    `db:"units" json:"units"`
}

type UpdateStockRequest struct {
	BloodStock map[string]int `json:"blood_stock" binding:"required,dive,keys,bloodgroup,endkeys,min=0"`
}
