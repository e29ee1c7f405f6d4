// Package sqlite persists intrinsic surface results and analysis runs.
//
// Results are stored as opaque blobs produced by surface.Result and keyed
// by (frame, qm, n0, phi), so a later run with the same parameters can
// reuse them. The schema is versioned with golang-migrate using the SQL
// files embedded from migrations/.
package sqlite
