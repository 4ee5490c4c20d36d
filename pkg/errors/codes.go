package errors

import "net/http"

// ErrorCode is a string identifier for a specific error condition.  Codes are
// stable across releases and safe to match on programmatically.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	CodeOK                 ErrorCode = "OK"
	CodeUnknown            ErrorCode = "COMMON_000"
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeNotFound           ErrorCode = "COMMON_003"
	CodeConflict           ErrorCode = "COMMON_004"
	CodeSerialization      ErrorCode = "COMMON_005"
	CodeServiceUnavailable ErrorCode = "COMMON_006"
	CodeConfigInvalid      ErrorCode = "COMMON_007"
)

// Field / analysis error codes
const (
	CodeFieldNotFound      ErrorCode = "FIELD_001"
	CodeFieldDataInvalid   ErrorCode = "FIELD_002"
	CodeAnalysisFailed     ErrorCode = "FIELD_003"
	CodeWeatherUnavailable ErrorCode = "FIELD_004"
	CodeDiseaseUnavailable ErrorCode = "FIELD_005"
)

// Catalog / regional error codes
const (
	CodeProductNotFound ErrorCode = "CAT_001"
	CodeCatalogInvalid  ErrorCode = "CAT_002"
	CodeRegionInvalid   ErrorCode = "REG_001"
)

// Rule engine error codes
const (
	CodeRuleNotFound   ErrorCode = "RULE_001"
	CodeRuleInvalid    ErrorCode = "RULE_002"
	CodeRuleDuplicate  ErrorCode = "RULE_003"
	CodeRuleLoadFailed ErrorCode = "RULE_004"
)

// Cache / infrastructure error codes
const (
	CodeCacheError    ErrorCode = "CACHE_001"
	CodeDatabaseError ErrorCode = "DB_001"
)

// HTTPStatus maps an ErrorCode to the HTTP status code the interface layer
// should respond with.  Unmapped codes fall back to 500.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeFieldDataInvalid, CodeRuleInvalid, CodeRuleLoadFailed, CodeRegionInvalid:
		return http.StatusBadRequest
	case CodeNotFound, CodeFieldNotFound, CodeProductNotFound, CodeRuleNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeRuleDuplicate:
		return http.StatusConflict
	case CodeServiceUnavailable, CodeWeatherUnavailable, CodeDiseaseUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
