package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
)

func isSequenceSet(value string) bool {
	if value == "" {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && ch != ':' && ch != ',' && ch != '*' {
			return false
		}
	}
	return true
}

// setNumber parses a sequence number or UID; "*" is returned as 0, the
// go-imap encoding of the largest number in use.
func setNumber(value string) (uint32, error) {
	if value == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid number %q in set", value)
	}
	return uint32(n), nil
}

func walkSet(value string, num func(uint32), rng func(uint32, uint32)) error {
	if value == "" {
		return fmt.Errorf("empty set")
	}
	for _, part := range strings.Split(value, ",") {
		bounds := strings.Split(part, ":")
		switch len(bounds) {
		case 1:
			n, err := setNumber(bounds[0])
			if err != nil {
				return err
			}
			if n == 0 {
				rng(0, 0)
				continue
			}
			num(n)
		case 2:
			start, err := setNumber(bounds[0])
			if err != nil {
				return err
			}
			stop, err := setNumber(bounds[1])
			if err != nil {
				return err
			}
			rng(start, stop)
		default:
			return fmt.Errorf("invalid range %q in set", part)
		}
	}
	return nil
}

func parseUIDSet(value string) (imap.UIDSet, error) {
	var set imap.UIDSet
	err := walkSet(value,
		func(n uint32) { set.AddNum(imap.UID(n)) },
		func(start, stop uint32) { set.AddRange(imap.UID(start), imap.UID(stop)) },
	)
	return set, err
}

func parseSeqSet(value string) (imap.SeqSet, error) {
	var set imap.SeqSet
	err := walkSet(value,
		func(n uint32) { set.AddNum(n) },
		func(start, stop uint32) { set.AddRange(start, stop) },
	)
	return set, err
}

// UIDSet builds a UID set from a list of UIDs.
func UIDSet(uids []uint32) imap.UIDSet {
	var set imap.UIDSet
	for _, uid := range uids {
		set.AddNum(imap.UID(uid))
	}
	return set
}
