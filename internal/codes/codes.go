package codes

// ExitFailure is returned by scracc for any failure before the program is run
// (bad arguments, unreadable files, compilation failure).
const ExitFailure = 255

// ErrorCodes maps compiler driver exit codes to their descriptions
var ErrorCodes = map[int]string{
	0:   "Success",
	1:   "Compile errors",
	2:   "Driver usage error",
	4:   "Internal compiler error",
	126: "Compiler is not executable",
	127: "Compiler not found",
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
