// Package device summarises the client that issued a request.
package device

import (
	"encoding/json"
	"strings"

	"github.com/mssola/useragent"
)

// Info describes a client device as seen in request headers.
type Info struct {
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	AcceptEncoding string `json:"accept_encoding"`
	Browser        string `json:"browser,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

// Parse builds Info from raw header values.
func Parse(userAgent, acceptLanguage, acceptEncoding string) Info {
	info := Info{
		UserAgent:      userAgent,
		AcceptLanguage: acceptLanguage,
		AcceptEncoding: acceptEncoding,
	}
	if userAgent == "" {
		return info
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	info.Browser = strings.TrimSpace(name + " " + version)
	info.OS = ua.OS()
	info.Mobile = ua.Mobile()
	info.Bot = ua.Bot()
	return info
}

// DisplayName renders a short label such as "Chrome on Linux x86_64".
func (i Info) DisplayName() string {
	if i.UserAgent == "" {
		return "Unknown Device"
	}
	browser := i.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := i.OS
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

// String encodes Info as compact JSON for storage alongside records.
func (i Info) String() string {
	b, err := json.Marshal(i)
	if err != nil {
		return i.UserAgent
	}
	return string(b)
}
