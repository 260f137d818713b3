package models

import "encoding/json"

// ScrapeJobRequest is the payload for POST /api/v1/scrape.
type ScrapeJobRequest struct {
	// Domain is the site to look up. Required.
	Domain string `json:"domain" binding:"required"`

	// Proxy fields are optional; ProxyIP and ProxyPort must be given
	// together, credentials are optional on top.
	ProxyIP   string `json:"proxy_ip,omitempty"`
	ProxyPort int    `json:"proxy_port,omitempty"`
	ProxyUser string `json:"proxy_user,omitempty"`
	ProxyPass string `json:"proxy_pass,omitempty"`
}

// Spec resolves the request into a JobSpec, deciding the proxy variant once.
func (r *ScrapeJobRequest) Spec() JobSpec {
	spec := JobSpec{Domain: r.Domain}
	if r.ProxyIP != "" && r.ProxyPort != 0 {
		spec.Proxy = &Proxy{
			Host:     r.ProxyIP,
			Port:     r.ProxyPort,
			Username: r.ProxyUser,
			Password: r.ProxyPass,
		}
	}
	return spec
}

// BatchRequest is the payload for POST /api/v1/batch. Each entry is either
// a bare domain string or an object with the ScrapeJobRequest fields.
type BatchRequest struct {
	Domains []BatchEntry `json:"domains" binding:"required"`
}

// BatchEntry accepts the string-or-object forms of a batch item and
// normalizes them during unmarshalling.
type BatchEntry struct {
	ScrapeJobRequest
}

// UnmarshalJSON accepts "example.com" or {"domain": ..., "proxy_ip": ...}.
func (e *BatchEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.ScrapeJobRequest = ScrapeJobRequest{Domain: s}
		return nil
	}
	return json.Unmarshal(data, &e.ScrapeJobRequest)
}
