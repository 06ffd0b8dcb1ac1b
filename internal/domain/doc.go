// Package domain models monthly climate series and the drought-index tables
// produced by the external self-calibrating Palmer (scPDSI) engine.
//
// # Input Conventions
//
// Climate input is a flat, ordered sequence of monthly records:
//
//	(year, month, temperature, precipitation)  →  e.g. (1959, 1, -4.2, 38.1)
//
// The engine needs one year of context before the first reported year, so a
// request for 1960–2000 consumes records from January 1959 through December
// 2000. [Reshape] slices that window and splits it into one temperature and one
// precipitation [ClimateMatrix], each row holding exactly twelve months.
//
// Temperature is in degrees Celsius and precipitation in millimetres, the units
// the engine reads. No conversion happens here.
//
// # Normals
//
// The engine also reads a twelve-value "normal" per variable: the mean of each
// month column over every row of the matrix, rounded to three decimals with
// round-half-to-even (the rule NumPy and pandas apply). See [ComputeNormals].
//
// # Output Conventions
//
// One engine run always writes two tables, the original Palmer index and the
// self-calibrated one. [Mode] selects which of them a caller receives:
//
//	pdsi    original table only
//	scpdsi  self-calibrated table only
//	both    both tables, identical years and columns
//
// Result tables are labelled YEAR, JAN … DEC and cover start through end; the
// context year is consumed by the engine and never reported.
//
// # Errors
//
// Every failure wraps one of the sentinel errors in errors.go so callers can
// branch with errors.Is, and [ErrorKind] turns any of them into a stable
// snake_case label for transport responses.
package domain
