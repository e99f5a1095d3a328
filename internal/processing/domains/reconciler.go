package domains

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
)

const (
	// minRecordCount is the full merged set for an apex+www pair: one
	// ownership TXT and one SSL validation TXT per variant, plus the
	// CNAMEs. Fewer means provisioning is still settling.
	minRecordCount = 6
	pollInterval   = 3 * time.Second
	pollDeadline   = 60 * time.Second
)

type DomainStore interface {
	UpsertDomain(ctx context.Context, rec *CustomDomainRecord) error
	FindDomain(ctx context.Context, domain string) (*CustomDomainRecord, error)
}

// Reconciler provisions custom-hostname records for vanity domains and
// polls until the DNS instruction set stabilizes.
type Reconciler struct {
	api         ProvisioningAPI
	store       DomainStore
	cnameTarget string

	interval time.Duration
	deadline time.Duration
	now      func() time.Time
}

func NewReconciler(api ProvisioningAPI, store DomainStore, cnameTarget string) *Reconciler {
	return &Reconciler{
		api:         api,
		store:       store,
		cnameTarget: cnameTarget,
		interval:    pollInterval,
		deadline:    pollDeadline,
		now:         time.Now,
	}
}

// Normalize canonicalizes a user-supplied domain to its bare apex
// form: lowercase, no scheme, no port, no trailing dot, no www.
func Normalize(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")

	if d == "" || !strings.Contains(d, ".") || strings.ContainsAny(d, " \t") {
		return "", ErrInvalidDomain
	}
	return d, nil
}

// Variants returns the hostname pair provisioned for a domain.
func Variants(apex string) []string {
	return []string{apex, "www." + apex}
}

// Reconcile creates (or looks up) provisioning records for the apex
// and www variants and returns the merged, deduplicated DNS record
// set. If fewer than the expected records are available it polls until
// the deadline. Callers can re-poll later via Verify.
func (r *Reconciler) Reconcile(ctx context.Context, rawDomain string) ([]DnsRecord, error) {
	apex, err := Normalize(rawDomain)
	if err != nil {
		return nil, err
	}

	states, err := r.ensureHostnames(ctx, apex)
	if err != nil {
		return nil, err
	}

	records := r.mergeRecords(apex, states)
	deadline := r.now().Add(r.deadline)

	for len(records) < minRecordCount && r.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		case <-time.After(r.interval):
		}

		states = r.refresh(ctx, apex, states)
		records = r.mergeRecords(apex, states)
	}

	rec := &CustomDomainRecord{
		Domain:    apex,
		Hostnames: Variants(apex),
		Records:   records,
		Status:    StatusPending,
		UpdatedAt: r.now().UTC(),
	}
	for _, s := range states {
		if s != nil {
			rec.ProvisioningIDs = append(rec.ProvisioningIDs, s.ID)
		}
	}
	if allActive(states) {
		rec.Status = StatusActive
	}

	if err := r.store.UpsertDomain(ctx, rec); err != nil {
		logger.Error("failed to persist custom domain record",
			zap.Error(err), zap.String("domain", apex))
	}

	return records, nil
}

// Verify re-reads hostname state for all variants and classifies the
// domain active only when every variant reports active hostname and
// SSL status.
func (r *Reconciler) Verify(ctx context.Context, rawDomain string) (DomainStatus, error) {
	apex, err := Normalize(rawDomain)
	if err != nil {
		return "", err
	}

	status := StatusActive
	for _, hostname := range Variants(apex) {
		state, err := r.api.GetHostname(ctx, hostname)
		if err != nil {
			if errors.Is(err, ErrHostnameNotFound) {
				return StatusPending, nil
			}
			return StatusError, err
		}
		if !state.Active() {
			status = StatusPending
		}
	}

	if rec, err := r.store.FindDomain(ctx, apex); err == nil && rec != nil {
		rec.Status = status
		rec.UpdatedAt = r.now().UTC()
		if err := r.store.UpsertDomain(ctx, rec); err != nil {
			logger.Warn("failed to update domain status",
				zap.Error(err), zap.String("domain", apex))
		}
	}

	return status, nil
}

// Records returns the stored DNS record set for a domain.
func (r *Reconciler) Records(ctx context.Context, rawDomain string) (*CustomDomainRecord, error) {
	apex, err := Normalize(rawDomain)
	if err != nil {
		return nil, err
	}
	return r.store.FindDomain(ctx, apex)
}

func (r *Reconciler) ensureHostnames(ctx context.Context, apex string) ([]*HostnameState, error) {
	variants := Variants(apex)
	states := make([]*HostnameState, len(variants))

	for i, hostname := range variants {
		state, err := r.api.CreateHostname(ctx, hostname)
		if errors.Is(err, ErrHostnameExists) {
			state, err = r.api.GetHostname(ctx, hostname)
		}
		if err != nil {
			return nil, err
		}
		states[i] = state
	}
	return states, nil
}

func (r *Reconciler) refresh(ctx context.Context, apex string, states []*HostnameState) []*HostnameState {
	variants := Variants(apex)
	out := make([]*HostnameState, len(variants))
	for i, hostname := range variants {
		state, err := r.api.GetHostname(ctx, hostname)
		if err != nil {
			logger.Warn("hostname re-read failed during poll",
				zap.Error(err), zap.String("hostname", hostname))
			out[i] = states[i]
			continue
		}
		out[i] = state
	}
	return out
}

// mergeRecords collects ownership TXT, SSL validation TXT and the
// implied CNAME per variant, deduplicated by (type, host, value).
func (r *Reconciler) mergeRecords(apex string, states []*HostnameState) []DnsRecord {
	seen := make(map[DnsRecord]struct{})
	var out []DnsRecord

	add := func(rec DnsRecord) {
		if rec.Host == "" || rec.Value == "" {
			return
		}
		if _, dup := seen[rec]; dup {
			return
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}

	for i, state := range states {
		hostname := Variants(apex)[i]
		add(DnsRecord{Type: "CNAME", Host: hostname, Value: r.cnameTarget})

		if state == nil {
			continue
		}
		if state.OwnershipTXT != nil {
			add(*state.OwnershipTXT)
		}
		for _, rec := range state.ValidationTXTs {
			add(rec)
		}
	}
	return out
}

func allActive(states []*HostnameState) bool {
	for _, s := range states {
		if s == nil || !s.Active() {
			return false
		}
	}
	return true
}
