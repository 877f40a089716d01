// Package resp provides standardized HTTP response helpers for building
// consistent JSON responses.
//
// All responses follow a standard structure:
//
//	{
//	  "status": 200,           // HTTP status code
//	  "code": "TOKEN_INVALID", // Business error code (empty on success)
//	  "message": "ok",         // Human-readable message
//	  "data": {...},           // Response payload (on success)
//	  "errors": {...}          // Error details (on failure)
//	}
//
// Business error codes are defined in the ecode package and provide
// standardized error classification across the application.
package resp
