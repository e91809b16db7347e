package asgsched

import (
	"fmt"
	"strconv"
	"strings"
)

// mdm is the parsed "min-desired-max" running target carried by the MDM tag.
type mdm struct {
	Min, Desired, Max int32
}

func (m mdm) String() string {
	return fmt.Sprintf("%d-%d-%d", m.Min, m.Desired, m.Max)
}

func (m mdm) isZero() bool {
	return m.Min == 0 && m.Desired == 0 && m.Max == 0
}

func parseMDM(value string) (mdm, error) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return mdm{}, fmt.Errorf("asgsched: malformed MDM tag %q", value)
	}
	ints := make([]int32, 3)
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return mdm{}, fmt.Errorf("asgsched: malformed MDM tag %q: %w", value, err)
		}
		ints[i] = int32(n)
	}
	return mdm{Min: ints[0], Desired: ints[1], Max: ints[2]}, nil
}
