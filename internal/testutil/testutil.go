// Package testutil provides common test utilities for the consearch project.
package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetConfig resets viper and schedules another reset when the test
// completes, so tests that touch global configuration stay isolated.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetViperValue sets a viper configuration value and schedules restoration
// of the previous value on cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// viper has no Unset, so a previously unset key stays set.
	})
}
