package errors

import "net/http"

type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodePayloadTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeInvalidCredential    Code = "INVALID_CREDENTIAL"
	CodeIdentityMismatch     Code = "IDENTITY_MISMATCH"
	CodeLedgerUnavailable    Code = "LEDGER_UNAVAILABLE"
	CodeInsufficientStanding Code = "INSUFFICIENT_STANDING"
	CodeUploadTransport      Code = "UPLOAD_TRANSPORT_ERROR"
	CodeUploadService        Code = "UPLOAD_SERVICE_ERROR"
)

// HTTPStatus maps a code to the status returned by the upload endpoint.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest, CodeInvalidCredential, CodeIdentityMismatch:
		return http.StatusBadRequest
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInsufficientStanding:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
