package constants

import "net/http"

// APISuccess represents a standardized API success response with code and HTTP status.
// Use these predefined success constants for consistent API responses across the application.
type APISuccess struct {
	Code   string
	Status int
}

var (
	SuccessCacheUpdated = APISuccess{
		Code:   CodeCacheUpdated,
		Status: http.StatusOK,
	}
	SuccessCacheDeleted = APISuccess{
		Code:   CodeCacheDeleted,
		Status: http.StatusOK,
	}
	SuccessEventAccepted = APISuccess{
		Code:   CodeEventAccepted,
		Status: http.StatusAccepted,
	}
	SuccessReportAccepted = APISuccess{
		Code:   CodeReportAccepted,
		Status: http.StatusCreated,
	}
	SuccessDomainAdded = APISuccess{
		Code:   CodeDomainAdded,
		Status: http.StatusCreated,
	}
	SuccessDomainVerified = APISuccess{
		Code:   CodeDomainVerified,
		Status: http.StatusOK,
	}
	SuccessRecordsFound = APISuccess{
		Code:   CodeRecordsFound,
		Status: http.StatusOK,
	}
	SuccessDispatchQueued = APISuccess{
		Code:   CodeDispatchQueued,
		Status: http.StatusAccepted,
	}
	SuccessEmailQueued = APISuccess{
		Code:   CodeEmailQueued,
		Status: http.StatusAccepted,
	}
)
