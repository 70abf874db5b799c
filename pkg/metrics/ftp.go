package metrics

// FTPMetrics provides observability for the FTP adapter's connection lifecycle.
type FTPMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// SetActiveSessions updates the number of authenticated sessions.
	SetActiveSessions(count int)
}

// NewNoopFTPMetrics returns an FTPMetrics that discards everything.
func NewNoopFTPMetrics() FTPMetrics {
	return noopFTPMetrics{}
}

type noopFTPMetrics struct{}

func (noopFTPMetrics) RecordConnectionAccepted() {}
func (noopFTPMetrics) RecordConnectionClosed()   {}
func (noopFTPMetrics) SetActiveSessions(int)     {}
