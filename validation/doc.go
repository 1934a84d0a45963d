// Package validation checks step configs and API payloads.
//
// Struct tags are evaluated with go-playground/validator; programmatic checks
// are collected with a Validator. Both report an *errors.AppError with code
// INVALID_INPUT and the offending fields listed under Details["fields"].
package validation
