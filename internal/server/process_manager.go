package server

// Service is one running instance of the supervised network service.
// A Service is disposed exactly once and never reused afterwards.
type Service interface {
	// ID identifies the instance in logs
	ID() string

	// Dispose stops the instance and releases its listener
	Dispose() error

	// ToggleLogging flips request logging and returns the new state
	ToggleLogging() bool

	// SetRatingRange sets the matchmaking elo range, 0 disables filtering
	SetRatingRange(rangeValue int)

	// IsRunning reports whether the instance is still serving
	IsRunning() bool
}

// ServiceFactory creates new Service instances bound to host:port.
// It must be safe to call again after a previous instance was disposed.
type ServiceFactory interface {
	Create(host string, port uint16) (Service, error)
}

// ServiceFactoryFunc adapts a function to ServiceFactory
type ServiceFactoryFunc func(host string, port uint16) (Service, error)

// Create calls f
func (f ServiceFactoryFunc) Create(host string, port uint16) (Service, error) {
	return f(host, port)
}
