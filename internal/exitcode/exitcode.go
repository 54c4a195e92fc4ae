package exitcode

// Exit codes for arey commands
const (
	Success       = 0
	Error         = 1
	ConfigError   = 2
	TemplateError = 3
	Cancelled     = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}
