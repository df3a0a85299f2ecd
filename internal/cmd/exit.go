package cmd

// Exit codes returned by the wbundle binary.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates invalid configuration or flags.
	ExitValidationError = 2

	// ExitPermissionDenied indicates the output could not be written.
	ExitPermissionDenied = 4

	// ExitNotFound indicates a config file, entry point or manifest was not found.
	ExitNotFound = 5

	// ExitBuildError indicates the host build or a sub-build reported errors.
	ExitBuildError = 7
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitPermissionDenied:
		return "Permission Denied"
	case ExitNotFound:
		return "Not Found"
	case ExitBuildError:
		return "Build Error"
	default:
		return "Unknown"
	}
}
