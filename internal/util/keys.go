package util

import (
	"strconv"
)

// DefaultGroup is used whenever a caller passes an empty group.
const DefaultGroup = "default"

// NormalizeGroup maps an empty group to DefaultGroup.
func NormalizeGroup(group string) string {
	if group == "" {
		return DefaultGroup
	}
	return group
}

// KeyString reports whether key is an accepted key type (string or any integer kind)
// and returns its canonical string form. Integers are rendered in base 10.
func KeyString(key any) (string, bool) {
	switch k := key.(type) {
	case string:
		return k, true
	case int:
		return strconv.FormatInt(int64(k), 10), true
	case int8:
		return strconv.FormatInt(int64(k), 10), true
	case int16:
		return strconv.FormatInt(int64(k), 10), true
	case int32:
		return strconv.FormatInt(int64(k), 10), true
	case int64:
		return strconv.FormatInt(k, 10), true
	case uint:
		return strconv.FormatUint(uint64(k), 10), true
	case uint8:
		return strconv.FormatUint(uint64(k), 10), true
	case uint16:
		return strconv.FormatUint(uint64(k), 10), true
	case uint32:
		return strconv.FormatUint(uint64(k), 10), true
	case uint64:
		return strconv.FormatUint(k, 10), true
	default:
		return "", false
	}
}

// TenantPrefix derives the key prefix for the current tenant.
// Without multi-tenancy the prefix is empty and keys are never rewritten.
func TenantPrefix(multiTenant bool, tenantID string) string {
	if !multiTenant {
		return ""
	}
	return tenantID + ":"
}

// Scope returns the identifier a key is stored under.
// Global groups (and single-tenant setups, where prefix is empty) use the key as-is.
func Scope(key, prefix string, global bool) string {
	if global || prefix == "" {
		return key
	}
	return prefix + key
}
