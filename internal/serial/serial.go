// Package serial derives stable device identifiers from friendly names.
//
// Identifiers are version 3 (MD5, name-based) UUIDs in the X.500 namespace.
// The namespace must never change: controllers remember devices by these
// identifiers, so a device renamed to the same string must come back with
// the same serial after an upgrade or a rewrite.
package serial

import "github.com/google/uuid"

// FromName returns the serial for a device name.
// The same name always yields the same serial.
func FromName(name string) string {
	return uuid.NewMD5(uuid.NameSpaceX500, []byte(name)).String()
}
