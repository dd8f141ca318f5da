package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

type sampleRequest struct {
	Name   string `validate:"required"`
	Email  string `validate:"required,email"`
	Count  int    `validate:"min=1,max=10"`
	Status string `validate:"oneof=active cancelled"`
}

func TestValidateRequestPasses(t *testing.T) {
	err := ValidateRequest(&sampleRequest{
		Name:   "billing",
		Email:  "ops@example.com",
		Count:  3,
		Status: "active",
	})
	assert.NoError(t, err)
}

func TestValidateRequestCollectsEveryViolation(t *testing.T) {
	err := ValidateRequest(&sampleRequest{
		Email:  "not-an-email",
		Count:  0,
		Status: "paused",
	})
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	details := ierr.Details(err)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "count")
	assert.Contains(t, details, "status")
}

func TestValidateRequestDescribesViolations(t *testing.T) {
	err := ValidateRequest(&sampleRequest{
		Name:   "billing",
		Email:  "ops@example.com",
		Count:  99,
		Status: "active",
	})
	assert.Error(t, err)

	details := ierr.Details(err)
	assert.Equal(t, "value is above the maximum of 10", details["count"])
}
