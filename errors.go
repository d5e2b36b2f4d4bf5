package mdr

import "github.com/scigolib/mdr/internal/utils"

// Error kinds. Match with errors.Is.
var (
	// ErrConfiguration reports an invalid parameter; errors.As with
	// *ConfigError names the parameter.
	ErrConfiguration = utils.ErrConfiguration

	// ErrEncodingInvariant reports a plugged-in encoder or collector whose
	// error sequence increases.
	ErrEncodingInvariant = utils.ErrEncodingInvariant

	// ErrPersistence wraps failures of the metadata store or fragment sink.
	ErrPersistence = utils.ErrPersistence

	// ErrFragmenting wraps erasure coding and fragment validation failures.
	ErrFragmenting = utils.ErrFragmenting
)

// ConfigError identifies the offending configuration parameter.
type ConfigError = utils.ConfigError
