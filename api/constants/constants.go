package constants

// Common error messages
const (
	ErrInvalidSession     = "Your session has expired or is invalid. Please login again"
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrMissingUserID      = "user_id is required in the request"
	ErrMissingCompanyID   = "company_id is required in the request"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrInvalidRequestBody = "Invalid request body"
	ErrPleaseLogin        = "Please login to continue."
)

// Upload flow messages
const (
	ErrFileMissing         = "File not found in request. Please attach a statement file using the 'file' field in form-data."
	ErrFileUnreadable      = "Failed to read the uploaded file. Please try again."
	ErrFileUnsupported     = "Unsupported file type. Please upload an xlsx, xls, or csv statement."
	ErrFileAlreadyUploaded = "This statement file was already uploaded for this company. Please upload a different file."
	ErrUploadExpired       = "This upload preview has expired. Please upload the file again."
	ErrNoParsableSheet     = "No sheet in the workbook could be parsed as a financial statement."
	MsgStatementConfirmed  = "Statement confirmed and saved"
	MsgTemplateSaved       = "Mapping template saved"
)

// DB / SQL error templates
const (
	ErrTxStartFailed  = "failed to start transaction: "
	ErrTxCommitFailed = "failed to commit transaction: "
	ErrQueryFailed    = "query failed: "
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "Content-Type"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)

// NBSP is the non-breaking space normalized out of spreadsheet cells.
const NBSP = " "
