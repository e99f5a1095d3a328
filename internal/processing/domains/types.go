package domains

import (
	"errors"
	"time"
)

type DomainStatus string

const (
	StatusPending DomainStatus = "pending"
	StatusActive  DomainStatus = "active"
	StatusError   DomainStatus = "error"
	StatusDeleted DomainStatus = "deleted"
)

var (
	ErrInvalidDomain = errors.New("invalid domain name")
	// ErrHostnameExists is returned by the provisioning API when the
	// hostname was already created; the reconciler falls back to a
	// lookup, which is what makes Reconcile idempotent.
	ErrHostnameExists = errors.New("hostname already exists")
	ErrHostnameNotFound = errors.New("hostname not found")
)

// DnsRecord is one DNS instruction for the customer. The merged set
// is deduplicated by the full (Type, Host, Value) triple.
type DnsRecord struct {
	Type  string `json:"type" bson:"type"`
	Host  string `json:"host" bson:"host"`
	Value string `json:"value" bson:"value"`
}

// HostnameState is the provisioning API's view of one hostname
// variant.
type HostnameState struct {
	ID             string
	Hostname       string
	Status         string
	SSLStatus      string
	OwnershipTXT   *DnsRecord
	ValidationTXTs []DnsRecord
}

// Active reports whether both the hostname and its certificate are
// fully provisioned.
func (s HostnameState) Active() bool {
	return s.Status == "active" && s.SSLStatus == "active"
}

// CustomDomainRecord is the persisted reconciliation state for one
// vanity domain (apex + www pair).
type CustomDomainRecord struct {
	ID              string       `bson:"_id,omitempty"`
	Domain          string       `bson:"domain"`
	Hostnames       []string     `bson:"hostnames"`
	ProvisioningIDs []string     `bson:"provisioningIds"`
	Records         []DnsRecord  `bson:"records"`
	Status          DomainStatus `bson:"status"`
	// RootRedirect is where the bare domain root points, when the
	// customer configured one.
	RootRedirect string    `bson:"rootRedirect,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}
