package common

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

func TestGetAccountFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected string
	}{
		{name: "no account specified returns default", args: map[string]interface{}{}, expected: "default"},
		{name: "account specified returns account", args: map[string]interface{}{"account": "work"}, expected: "work"},
		{name: "empty account returns default", args: map[string]interface{}{"account": ""}, expected: "default"},
		{name: "nil args returns default", args: nil, expected: "default"},
		{name: "non-string account type returns default", args: map[string]interface{}{"account": 123}, expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetAccountFromArgs(tt.args))
		})
	}
}

func TestDescribeResolveError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"not found", fmt.Errorf("%w: ghost", registry.ErrAccountNotFound), "manage-accounts"},
		{"permission", fmt.Errorf("%w: reader", registry.ErrInsufficientPermission), "owner or writer"},
		{"unknown calendar", registry.ErrCalendarNotFound, "list-calendars"},
		{"invalid id", fmt.Errorf("%w: empty", registry.ErrInvalidIdentifier), "empty"},
		{"other", fmt.Errorf("boom"), "Failed to select an account for team@example.com: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, DescribeResolveError("team@example.com", tt.err), tt.contains)
		})
	}
}
