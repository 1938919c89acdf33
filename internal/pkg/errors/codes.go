package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1003
	ErrBadRequest      = 1004
	ErrServiceUnavail  = 1005
	ErrRequestTooLarge = 1006

	// Vault errors (2000-2999)
	ErrVaultFileNotFound      = 2000
	ErrVaultEmptyUpload       = 2001
	ErrVaultStorageFailed     = 2002
	ErrVaultStorageTimeout    = 2003
	ErrVaultInvalidOrdering   = 2004
	ErrVaultInvalidFilter     = 2005
	ErrVaultFileTooLarge      = 2006
	ErrVaultStatsInconsistent = 2007
	ErrVaultIngestContention  = 2008
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},
	ErrRequestTooLarge: {ErrRequestTooLarge, http.StatusRequestEntityTooLarge, "Request entity too large"},

	// Vault errors
	ErrVaultFileNotFound:      {ErrVaultFileNotFound, http.StatusNotFound, "File not found"},
	ErrVaultEmptyUpload:       {ErrVaultEmptyUpload, http.StatusBadRequest, "No file provided"},
	ErrVaultStorageFailed:     {ErrVaultStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrVaultStorageTimeout:    {ErrVaultStorageTimeout, http.StatusServiceUnavailable, "Storage operation timed out"},
	ErrVaultInvalidOrdering:   {ErrVaultInvalidOrdering, http.StatusBadRequest, "Unrecognized ordering value"},
	ErrVaultInvalidFilter:     {ErrVaultInvalidFilter, http.StatusBadRequest, "Invalid filter parameters"},
	ErrVaultFileTooLarge:      {ErrVaultFileTooLarge, http.StatusRequestEntityTooLarge, "File size exceeds limit"},
	ErrVaultStatsInconsistent: {ErrVaultStatsInconsistent, http.StatusServiceUnavailable, "Storage statistics are inconsistent, mutations are suspended"},
	ErrVaultIngestContention:  {ErrVaultIngestContention, http.StatusServiceUnavailable, "Upload contention, please retry"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
