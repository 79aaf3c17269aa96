// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package validation

import (
	"strings"
	"testing"
)

type pageParams struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

func TestValidateStructPasses(t *testing.T) {
	if verr := ValidateStruct(&pageParams{Limit: 20, Offset: 0}); verr != nil {
		t.Errorf("expected valid params, got %v", verr)
	}
}

func TestValidateStructFailsWithMessage(t *testing.T) {
	verr := ValidateStruct(&pageParams{Limit: 500, Offset: -1})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(verr.Fields))
	}

	msg := verr.Error()
	if !strings.Contains(msg, "Limit must be at most 100") {
		t.Errorf("expected limit message, got %q", msg)
	}
	if !strings.Contains(msg, "Offset must be at least 0") {
		t.Errorf("expected offset message, got %q", msg)
	}
}

func TestValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
