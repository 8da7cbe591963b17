package domain

// SendOptions tune a single dispatch call.
type SendOptions struct {
	Priority       Priority
	ForceWindow    bool
	AllowRetry     bool
	WindowOverride *Schedule
	Provider       string
}

// DefaultSendOptions returns the options used when a caller supplies none.
func DefaultSendOptions() SendOptions {
	return SendOptions{
		Priority:   PriorityNormal,
		AllowRetry: true,
	}
}
