package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
)

func TestBloodGroupTag(t *testing.T) {
	v := New()
	lat, lng := 12.9, 77.6

	ok := model.BloodRequestInput{
		BloodGroup: "AB-",
		Quantity:   2,
		Location:   &model.LocationInput{Latitude: &lat, Longitude: &lng},
	}
	assert.NoError(t, v.Validate(ok))

	bad := ok
	bad.BloodGroup = "C+"
	err := v.Validate(bad)
	require.Error(t, err)
	assert.Contains(t, Describe(err), "BloodGroup must be one of")
}

func TestStockMapKeys(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(model.UpdateStockRequest{BloodStock: map[string]int{"O+": 10}}))
	assert.Error(t, v.Validate(model.UpdateStockRequest{BloodStock: map[string]int{"Z": 10}}))
	assert.Error(t, v.Validate(model.UpdateStockRequest{BloodStock: map[string]int{"O+": -1}}))
}

func TestRegisterGin(t *testing.T) {
	assert.NoError(t, RegisterGin())
}
