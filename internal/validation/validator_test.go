// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package validation

import (
	"strings"
	"testing"
)

type inviteRequest struct {
	Email       string `validate:"required,email"`
	ProfileName string `validate:"required,min=1,max=64"`
	TTLDays     int    `validate:"omitempty,min=1,max=30"`
}

type grantRequest struct {
	Permission string `validate:"required,permission"`
}

func TestValidateStructValid(t *testing.T) {
	req := inviteRequest{
		Email:       "rep@example.com",
		ProfileName: "sales_user",
		TTLDays:     7,
	}

	if verr := ValidateStruct(&req); verr != nil {
		t.Errorf("expected no validation error, got: %v", verr)
	}
}

func TestValidateStructMissingRequired(t *testing.T) {
	req := inviteRequest{}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for empty struct")
	}

	if len(verr.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %s", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Email is required") {
		t.Errorf("expected Email required message, got: %s", apiErr.Message)
	}
}

func TestValidateStructBadEmail(t *testing.T) {
	req := inviteRequest{
		Email:       "not-an-email",
		ProfileName: "sales_user",
	}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for malformed email")
	}

	found := false
	for _, fe := range verr.Errors() {
		if fe.Field() == "Email" && fe.Tag() == "email" {
			found = true
			if !strings.Contains(fe.Error(), "valid email") {
				t.Errorf("unexpected message: %s", fe.Error())
			}
		}
	}
	if !found {
		t.Error("expected an Email/email field error")
	}
}

func TestValidateStructTTLOutOfRange(t *testing.T) {
	req := inviteRequest{
		Email:       "rep@example.com",
		ProfileName: "sales_user",
		TTLDays:     45,
	}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for TTLDays=45")
	}

	apiErr := verr.ToAPIError()
	if !strings.Contains(apiErr.Message, "at most 30") {
		t.Errorf("expected max message, got: %s", apiErr.Message)
	}
}

func TestPermissionTag(t *testing.T) {
	tests := []struct {
		name       string
		permission string
		wantValid  bool
	}{
		{"exact", "leads:records:read", true},
		{"action wildcard", "leads:records:*", true},
		{"super admin", "*:*:*", true},
		{"two segments", "leads:records", false},
		{"four segments", "a:b:c:d", false},
		{"empty segment", "leads::read", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := grantRequest{Permission: tt.permission}
			verr := ValidateStruct(&req)
			gotValid := verr == nil
			if gotValid != tt.wantValid {
				t.Errorf("permission %q: valid=%v, want %v", tt.permission, gotValid, tt.wantValid)
			}
		})
	}
}

func TestSingleErrorDetails(t *testing.T) {
	req := grantRequest{Permission: "bad"}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}

	apiErr := verr.ToAPIError()
	details := apiErr.Details
	if details == nil {
		t.Fatal("expected details on single-field error")
	}
	if details["field"] != "Permission" {
		t.Errorf("expected field Permission, got %v", details["field"])
	}
	if details["tag"] != "permission" {
		t.Errorf("expected tag permission, got %v", details["tag"])
	}
}
