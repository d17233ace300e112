// Package namespace implements the namespace settings validator:
// deep-merging partial settings updates into the current settings, then
// enforcing the field constraints and key allow-lists that keep the
// settings blob well-formed before it's persisted to the external settings
// store.
package namespace
