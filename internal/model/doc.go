// Package model provides the domain types shared by classprep packages.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - A ResourcePair is immutable once recorded
//   - A RunRecord is an ordered sequence of pairs, never parallel id lists
//   - All JSON tags use snake_case
package model
