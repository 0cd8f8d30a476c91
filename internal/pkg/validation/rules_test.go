package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ratingQuery struct {
	Sort   string `validate:"omitempty,rating_sort"`
	Status string `validate:"omitempty,rating_status"`
	Code   string `validate:"omitempty,certificate_id"`
}

func TestRegister(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	valid := []ratingQuery{
		{},
		{Sort: "highest"},
		{Status: "rejected"},
		{Code: "K7Q2M9X4ZP1B"},
	}
	for _, q := range valid {
		assert.NoError(t, v.Struct(q), "%+v", q)
	}

	invalid := []ratingQuery{
		{Sort: "random"},
		{Status: "hidden"},
		{Code: "k7q2m9x4zp1b"},
		{Code: "K7Q2M9X4ZP1"},
		{Code: "' OR 1=1 --"},
	}
	for _, q := range invalid {
		assert.Error(t, v.Struct(q), "%+v", q)
	}
}

func TestRegisterWithGin_Idempotent(t *testing.T) {
	require.NoError(t, RegisterWithGin())
	require.NoError(t, RegisterWithGin())
}
