package network

import "fmt"

func errInvalidEnum(typeName, value string) error {
	return fmt.Errorf("network: %q is not a valid %s", value, typeName)
}
