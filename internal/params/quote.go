package params

import "strings"

// CommandLine renders an argument vector as a copy-pasteable shell string
// for diagnostics. Execution always uses the argv list directly; this
// quoting exists only for display, so quoting bugs cannot corrupt a run.
func CommandLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range arg {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}
