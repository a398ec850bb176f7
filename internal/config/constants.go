package config

const SourceFileExt = ".smeli"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".smeli", ".sm"}

// Project configuration file names, in lookup order
var ConfigFileNames = []string{"smeli.yaml", "smeli.yml"}

const Version = "0.1.0"

// RenderBindingName is the binding a scope exposes to offer a renderable
// value to its host.
const RenderBindingName = "render"

// Remote-control defaults
const (
	DefaultListen      = "127.0.0.1:7420"
	RemoteServiceName  = "smeli.remote.Remote"
	RemoteProtoFile    = "smeli/remote.proto"
	SessionMetadataKey = "smeli-session"
)

// Log levels accepted in smeli.yaml and on the command line
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// Color modes for diagnostics
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// AllSteps activates every statement of a document.
const AllSteps = -1
