package utils

// ConfigFileName is the name of the YAML configuration file looked up in the working directory.
const ConfigFileName = "codestream.yaml"

// GlobalConfigDirectoryName is the directory under the user's home that holds the global configuration.
const GlobalConfigDirectoryName = ".codestream"

// DotEnvFileName is the optional environment file loaded before configuration is resolved.
const DotEnvFileName = ".env"

// LoggerInitializationFailedMessageFormat reports a logger construction failure.
const LoggerInitializationFailedMessageFormat = "logger initialization failed: %w"

// ApplicationExecutionFailedMessage prefixes fatal command errors.
const ApplicationExecutionFailedMessage = "codestream failed"
