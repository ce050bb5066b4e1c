package publisher

// Publisher notifies the marketplace backend about newly ingested listings.
type Publisher interface {
	// Publish publishes one accepted listing payload, tagged with its leaf key.
	Publish(leafKey string, message []byte) error

	// TrimStream bounds the stream to the configured maximum length
	TrimStream() error

	// Close closes the publisher connection
	Close() error
}
