package metrics

import "fmt"

// Tag creates a DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

func TierTag(tier string) string {
	return Tag("tier", tier)
}

func OperationTag(op string) string {
	return Tag("operation", op)
}

// StatusTag creates a status tag (ok/error).
func StatusTag(status string) string {
	return Tag("status", status)
}

func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
