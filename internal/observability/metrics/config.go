package metrics

// Config labels emitted metrics with the service identity.
type Config struct {
	ServiceName string
	Environment string
}
