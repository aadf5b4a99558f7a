package oauth

import "fmt"

// ConfigurationError indicates the integration is misconfigured (unknown
// key, missing server URL, missing redirect URI). Never retried.
type ConfigurationError struct {
	Integration string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("integration %s is misconfigured: %s", e.Integration, e.Reason)
}

// DiscoveryError indicates authorization-server metadata could not be
// obtained and no static fallback was configured.
type DiscoveryError struct {
	Integration string
	ServerURL   string
	Err         error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering authorization server for %s (%s): %v", e.Integration, e.ServerURL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// RegistrationError indicates no client credentials could be resolved: the
// server offers no registration endpoint and nothing is configured or stored.
type RegistrationError struct {
	Integration string
	Reason      string
	Err         error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registering client for %s: %s: %v", e.Integration, e.Reason, e.Err)
	}
	return fmt.Sprintf("registering client for %s: %s", e.Integration, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// TokenExchangeError indicates the authorization server rejected the
// authorization-code grant. ProviderError/ProviderErrorDescription carry the
// server's error fields when available.
type TokenExchangeError struct {
	Integration              string
	Err                      error
	ProviderError            string
	ProviderErrorDescription string
}

func (e *TokenExchangeError) Error() string {
	if e.ProviderError != "" {
		return fmt.Sprintf("exchanging authorization code for %s: %s (%s)", e.Integration, e.ProviderError, e.ProviderErrorDescription)
	}
	return fmt.Sprintf("exchanging authorization code for %s: %v", e.Integration, e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError indicates the authorization server rejected the
// refresh-token grant.
type TokenRefreshError struct {
	Integration              string
	Err                      error
	ProviderError            string
	ProviderErrorDescription string
}

func (e *TokenRefreshError) Error() string {
	if e.ProviderError != "" {
		return fmt.Sprintf("refreshing token for %s: %s (%s)", e.Integration, e.ProviderError, e.ProviderErrorDescription)
	}
	return fmt.Sprintf("refreshing token for %s: %v", e.Integration, e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// NotConnectedError indicates no usable connection exists for the account.
// The caller should run the authorization flow first.
type NotConnectedError struct {
	Integration    string
	EmailAccountID string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("account %s is not connected to %s, run the authorization flow first", e.EmailAccountID, e.Integration)
}

// ReconnectRequiredError indicates the stored token expired and no refresh
// token is available. Distinct from NotConnectedError so callers can tell
// "never connected" from "connection lapsed".
type ReconnectRequiredError struct {
	Integration    string
	EmailAccountID string
}

func (e *ReconnectRequiredError) Error() string {
	return fmt.Sprintf("connection of account %s to %s has expired and cannot be refreshed, reconnect the integration", e.EmailAccountID, e.Integration)
}
