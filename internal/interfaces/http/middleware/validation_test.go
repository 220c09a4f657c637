package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	// Field names in errors come from json tags after setup.
	type disbursePayload struct {
		TrancheNumber int    `json:"tranche_number" binding:"required,gte=1"`
		Reference     string `json:"reference" binding:"required"`
		Internal      string `json:"-" binding:"omitempty"`
	}

	err := v.Struct(disbursePayload{})
	require.Error(t, err)

	verrs := err.(validator.ValidationErrors)
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field())
	}
	assert.Contains(t, fields, "tranche_number")
	assert.Contains(t, fields, "reference")
}

func TestValidationDetails(t *testing.T) {
	SetupValidator()
	v := binding.Validator.Engine().(*validator.Validate)

	type createLoanPayload struct {
		BorrowerEmail string `json:"borrower_email" binding:"required,email"`
		TermMonths    int    `json:"term_months" binding:"required,gte=1,lte=360"`
		Purpose       string `json:"purpose" binding:"required,min=5"`
	}

	err := v.Struct(createLoanPayload{BorrowerEmail: "not-an-email", TermMonths: 500, Purpose: "x"})
	require.Error(t, err)

	details := ValidationDetails(err.(validator.ValidationErrors))
	require.Len(t, details, 3)

	byField := make(map[string]string, len(details))
	for _, d := range details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "Invalid email format", byField["borrower_email"])
	assert.Equal(t, "Must be less than or equal to 360", byField["term_months"])
	assert.Equal(t, "Must be at least 5 characters", byField["purpose"])
}

func TestFieldMessage(t *testing.T) {
	type payload struct {
		Required string `binding:"required"`
		Email    string `binding:"omitempty,email"`
		Min      string `binding:"omitempty,min=5"`
		Max      string `binding:"omitempty,max=10"`
		Len      string `binding:"omitempty,len=5"`
		UUID     string `binding:"omitempty,uuid"`
		OneOf    string `binding:"omitempty,oneof=DRAFT ACTIVE CLOSED"`
		GTE      int    `binding:"omitempty,gte=10"`
		URL      string `binding:"omitempty,url"`
		Numeric  string `binding:"omitempty,numeric"`
	}

	v := validator.New()
	v.SetTagName("binding")

	cases := []struct {
		field string
		value payload
		want  string
	}{
		{"Required", payload{}, "This field is required"},
		{"Email", payload{Required: "x", Email: "nope"}, "Invalid email format"},
		{"Min", payload{Required: "x", Min: "ab"}, "Must be at least 5 characters"},
		{"Max", payload{Required: "x", Max: "far too long value"}, "Must be at most 10 characters"},
		{"Len", payload{Required: "x", Len: "ab"}, "Must be exactly 5 characters"},
		{"UUID", payload{Required: "x", UUID: "nope"}, "Invalid UUID format"},
		{"OneOf", payload{Required: "x", OneOf: "PENDING"}, "Must be one of: DRAFT ACTIVE CLOSED"},
		{"GTE", payload{Required: "x", GTE: 3}, "Must be greater than or equal to 10"},
		{"URL", payload{Required: "x", URL: "nope"}, "Invalid URL format"},
		{"Numeric", payload{Required: "x", Numeric: "abc"}, "Must be numeric"},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			err := v.Struct(tc.value)
			require.Error(t, err)
			for _, e := range err.(validator.ValidationErrors) {
				if e.Field() == tc.field {
					assert.Equal(t, tc.want, fieldMessage(e))
					return
				}
			}
			t.Fatalf("no validation error reported for field %s", tc.field)
		})
	}
}
