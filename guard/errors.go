package guard

import (
	"errors"
	"fmt"
)

var errNoSource = errors.New("no allowlist source")

type errPanic struct {
	value any
}

func (e errPanic) Error() string {
	return fmt.Sprintf("allowlist source panicked: %v", e.value)
}
