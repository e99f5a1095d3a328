package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/constants"
	"github.com/relaypath/edge/internal/infrastructure/logger"
	appvalidation "github.com/relaypath/edge/internal/infrastructure/validation"
	"github.com/relaypath/edge/internal/processing/domains"
	"github.com/relaypath/edge/pkg/httputils"
)

// DomainsHandler serves custom-domain provisioning. When the
// provisioning API is not configured every endpoint answers 503
// rather than pretending the domain was set up.
type DomainsHandler struct {
	reconciler *domains.Reconciler
	configured bool
}

func NewDomainsHandler(reconciler *domains.Reconciler, configured bool) *DomainsHandler {
	return &DomainsHandler{reconciler: reconciler, configured: configured}
}

type addDomainRequest struct {
	Domain string `json:"domain" validate:"required,notblank"`
}

type domainRecordsResponse struct {
	Domain  string              `json:"domain"`
	Status  string              `json:"status,omitempty"`
	Records []domains.DnsRecord `json:"records"`
}

// Add provisions the apex and www variants for a customer domain and
// returns the DNS instructions. Safe to call again for the same
// domain; reconciliation converges on the same record set.
func (h *DomainsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		httputils.WriteAPIError(w, r, constants.ErrProvisioningUnconfigured)
		return
	}

	var req addDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	records, err := h.reconciler.Reconcile(r.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, domains.ErrInvalidDomain) {
			httputils.WriteAPIError(w, r, constants.ErrInvalidDomain)
			return
		}
		logger.Error("domain reconcile failed", zap.Error(err), zap.String("domain", req.Domain))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessDomainAdded, domainRecordsResponse{
		Domain:  req.Domain,
		Records: records,
	})
}

// Verify re-checks provisioning state for a domain and reports it.
func (h *DomainsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		httputils.WriteAPIError(w, r, constants.ErrProvisioningUnconfigured)
		return
	}

	var req addDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	status, err := h.reconciler.Verify(r.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, domains.ErrInvalidDomain) {
			httputils.WriteAPIError(w, r, constants.ErrInvalidDomain)
			return
		}
		logger.Error("domain verify failed", zap.Error(err), zap.String("domain", req.Domain))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessDomainVerified, map[string]string{
		"domain": req.Domain,
		"status": string(status),
	})
}

// Records returns the stored DNS instructions for a domain.
func (h *DomainsHandler) Records(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		httputils.WriteAPIError(w, r, constants.ErrProvisioningUnconfigured)
		return
	}

	var req addDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	rec, err := h.reconciler.Records(r.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, domains.ErrInvalidDomain) {
			httputils.WriteAPIError(w, r, constants.ErrInvalidDomain)
			return
		}
		logger.Error("domain records lookup failed", zap.Error(err), zap.String("domain", req.Domain))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}
	if rec == nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidDomain.WithMessage("Domain is not registered"))
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessRecordsFound, domainRecordsResponse{
		Domain:  rec.Domain,
		Status:  string(rec.Status),
		Records: rec.Records,
	})
}
