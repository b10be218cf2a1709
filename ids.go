package chatcore

import (
	"strings"

	"github.com/google/uuid"
)

// suffixLength matches the width of the random part of generated keys.
const suffixLength = 9

// RandomSuffix returns a short lowercase alphanumeric token used to
// disambiguate keys created within the same millisecond.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}
