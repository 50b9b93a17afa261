// Package errors provides structured error handling for docindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, extraction)
//   - 3XX: Network errors (embedding providers)
//   - 4XX: Validation errors (store contract violations)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current operation; the caller must not continue the batch.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one unit of work (a source, a chunk) but the batch continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, for example a provider fallback.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeProviderMissing   = "ERR_103_PROVIDER_NOT_CONFIGURED"

	// IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission    = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull          = "ERR_203_DISK_FULL"
	ErrCodeStoreLocked       = "ERR_204_STORE_LOCKED"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"
	ErrCodeFileCorrupt       = "ERR_206_FILE_CORRUPT"
	ErrCodeExtractionFailed  = "ERR_207_EXTRACTION_FAILED"
	ErrCodeUnsupportedFormat = "ERR_208_UNSUPPORTED_FORMAT"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeProviderRejected   = "ERR_303_PROVIDER_REJECTED"
	ErrCodeProviderMalformed  = "ERR_304_PROVIDER_MALFORMED"

	// Validation errors (400-499)
	ErrCodeInvalidInput           = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch      = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery           = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty             = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath            = "ERR_406_INVALID_PATH"
	ErrCodeInvalidSnapshot        = "ERR_407_INVALID_SNAPSHOT"
	ErrCodeModeMismatch           = "ERR_408_MODE_MISMATCH"
	ErrCodeQueryDimensionMismatch = "ERR_409_QUERY_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed  = "ERR_504_CHUNKING_FAILED"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull,
		ErrCodeDimensionMismatch, ErrCodeModeMismatch, ErrCodeQueryDimensionMismatch:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}
