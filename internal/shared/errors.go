package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed          = fmt.Errorf("authentication failed")
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")
	ErrTokenExchangeFailed = fmt.Errorf("token exchange failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrCatalogFetchFailed = fmt.Errorf("catalog fetch failed")

	// Pipeline errors
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrRunInProgress       = fmt.Errorf("run already in progress")
	ErrSourceUnavailable   = fmt.Errorf("source unavailable")
	ErrTransferInterrupted = fmt.Errorf("transfer interrupted")
	ErrConversionFailed    = fmt.Errorf("conversion failed")

	// Journal errors
	ErrRunNotFound = fmt.Errorf("run not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
