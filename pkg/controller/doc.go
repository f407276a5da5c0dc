// Package controller is the authenticated HTTP client for the APM
// controller's REST API. It resolves one credential variant at startup
// (OAuth client-credentials or session cookie with anti-forgery token) and
// signs every metric catalog query with it.
package controller
