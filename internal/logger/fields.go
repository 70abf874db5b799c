package logger

// Standard field keys for structured logging.
const (
	KeySession   = "session"
	KeyPrincipal = "principal"
	KeyClientIP  = "client_ip"
	KeyProtocol  = "protocol"
	KeyOperation = "op"

	KeyPath      = "path"
	KeyOldPath   = "old_path"
	KeyNewPath   = "new_path"
	KeyContainer = "container"
	KeyKey       = "key"
	KeySize      = "size"
	KeyCount     = "count"
	KeyLimit     = "limit"

	KeyBackend = "backend"
	KeyAddr    = "addr"
	KeyError   = "error"
)
