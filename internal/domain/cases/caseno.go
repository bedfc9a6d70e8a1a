package cases

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// untaggedPlaceholder stands in for the tag segment when the animal has no
// ear tag. Untagged prefixes are not unique on their own, so those case
// numbers carry a random suffix.
const untaggedPlaceholder = "NA"

// buildCaseNo composes a case number from the last six characters of the
// owner code (member code, or non-member id), the tag number or NA, and
// the visit timestamp. Tagged prefixes are deterministic; untagged ones
// get a three-digit random suffix.
func buildCaseNo(ownerCode, tagNumber string, visitAt time.Time) (string, error) {
	tag := tagNumber
	if tag == "" {
		tag = untaggedPlaceholder
	}
	no := fmt.Sprintf("%s-%s-%s", lastN(ownerCode, 6), tag, visitAt.Format("20060102T150405"))
	if tag != untaggedPlaceholder {
		return no, nil
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return no + "-" + suffix, nil
}

func lastN(s string, n int) string {
	s = strings.ToUpper(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func randomSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("generate case number suffix: %w", err)
	}
	return fmt.Sprintf("%03d", n.Int64()), nil
}
