package utils

import (
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

// ParseUserAgent extracts useful information from User-Agent string
func ParseUserAgent(userAgent string) (client, os, device string) {
	if userAgent == "" {
		return "Unknown Client", "Unknown OS", "Desktop"
	}

	parsedUA := ua.Parse(userAgent)

	if parsedUA.Name != "" {
		client = parsedUA.Name
	} else {
		client = "Unknown Client"
	}

	if parsedUA.OS != "" {
		os = parsedUA.OS
	} else {
		os = "Unknown OS"
	}

	device = "Desktop"
	if parsedUA.Mobile {
		device = "Mobile"
	} else if parsedUA.Tablet {
		device = "Tablet"
	}

	return strings.TrimSpace(client), strings.TrimSpace(os), device
}

// DescribeDevice renders the clock-in client as "Client on OS (Device)".
// It is stored on the session so a second concurrently running tracker
// instance can be told apart when totals are reconciled.
func DescribeDevice(userAgent string) string {
	client, os, device := ParseUserAgent(userAgent)
	return fmt.Sprintf("%s on %s (%s)", client, os, device)
}
