package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectInvoke        = "runtime.invoke.v1"
	SubjectDownloadEvent = "runtime.download"
)

// BuildDownloadSubject builds the per-status download event subject, e.g. "runtime.download.failed".
func BuildDownloadSubject(base, status string) string {
	return fmt.Sprintf("%s.%s", base, status)
}

// BuildNamespaceInvokeSubject builds a namespace-scoped invocation subject, e.g.
// "runtime.invoke.v1.file". Dots inside the namespace become underscores.
func BuildNamespaceInvokeSubject(base, namespace string) string {
	safe := strings.ReplaceAll(namespace, ".", "_")
	return fmt.Sprintf("%s.%s", base, safe)
}
