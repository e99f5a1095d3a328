package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	// Common error codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"

	// Redirect-specific codes
	CodeInvalidSlug   = "INVALID_SLUG"
	CodeLinkNotFound  = "LINK_NOT_FOUND"
	CodeLinkInactive  = "LINK_INACTIVE"
	CodeInvalidDomain = "INVALID_DOMAIN"

	// Configuration codes
	CodeProvisioningUnconfigured = "PROVISIONING_UNCONFIGURED"
	CodeAPIKeysUnconfigured      = "API_KEYS_UNCONFIGURED"
	CodeRelayUnavailable         = "RELAY_UNAVAILABLE"

	// Success codes
	CodeCacheUpdated    = "CACHE_UPDATED"
	CodeCacheDeleted    = "CACHE_DELETED"
	CodeEventAccepted   = "EVENT_ACCEPTED"
	CodeReportAccepted  = "REPORT_ACCEPTED"
	CodeDomainAdded     = "DOMAIN_ADDED"
	CodeDomainVerified  = "DOMAIN_VERIFIED"
	CodeRecordsFound    = "RECORDS_FOUND"
	CodeDispatchQueued  = "DISPATCH_QUEUED"
	CodeEmailQueued     = "EMAIL_QUEUED"
)
