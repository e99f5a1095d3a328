package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Unauthorized"

	// Redirect-specific messages
	MsgInvalidSlug   = "Slug may only contain lowercase letters, digits and hyphens"
	MsgLinkNotFound  = "Link not found"
	MsgLinkInactive  = "Link is not active"
	MsgInvalidDomain = "Invalid domain name"

	// Configuration messages
	MsgProvisioningUnconfigured = "Custom domain provisioning is not configured"
	MsgAPIKeysUnconfigured      = "Management API keys are not configured"
	MsgRelayUnavailable         = "Event relay is unavailable"
)
