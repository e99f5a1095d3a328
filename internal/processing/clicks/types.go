package clicks

import "time"

// ClickEvent is the immutable record of one processed visit. Built
// once on the request path, relayed for persistence, never updated.
type ClickEvent struct {
	RayID       string    `json:"rayId" bson:"rayId"`
	Domain      string    `json:"domain" bson:"domain"`
	Slug        string    `json:"slug" bson:"slug"`
	TargetURL   string    `json:"targetUrl,omitempty" bson:"targetUrl,omitempty"`
	Query       string    `json:"query,omitempty" bson:"query,omitempty"`
	Verdict     string    `json:"verdict" bson:"verdict"`
	IP          string    `json:"ip" bson:"ip"`
	UserAgent   string    `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Referer     string    `json:"referer,omitempty" bson:"referer,omitempty"`
	Country     string    `json:"country,omitempty" bson:"country,omitempty"`
	City        string    `json:"city,omitempty" bson:"city,omitempty"`
	Continent   string    `json:"continent,omitempty" bson:"continent,omitempty"`
	IsEU        bool      `json:"isEu" bson:"isEu"`
	IsTor       bool      `json:"isTor" bson:"isTor"`
	BotScore    int       `json:"botScore" bson:"botScore"`
	VerifiedBot bool      `json:"verifiedBot" bson:"verifiedBot"`
	ThreatScore int       `json:"threatScore" bson:"threatScore"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}
