package command

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type Existence int

const (
	AnyExistence Existence = iota
	OnlyIfAbsent           // NX
	OnlyIfPresent          // XX
)

type ExpiryUnit int

const (
	NoExpiry ExpiryUnit = iota
	Seconds             // EX
	Milliseconds        // PX
)

type SetArgs struct {
	Existence Existence
	Expiry    ExpiryUnit
	Amount    int64
	Get       bool
}

// TTL converts the expiry option to a duration, zero when there is none.
func (a SetArgs) TTL() time.Duration {
	switch a.Expiry {
	case Seconds:
		return time.Duration(a.Amount) * time.Second
	case Milliseconds:
		return time.Duration(a.Amount) * time.Millisecond
	default:
		return 0
	}
}

// ParseSetArgs reads the option tail of SET (everything after the value).
// Options are case-insensitive; NX/XX and EX/PX are each mutually exclusive
// and may appear once.
func ParseSetArgs(tail []string) (SetArgs, error) {
	var args SetArgs
	for i := 0; i < len(tail); i++ {
		switch strings.ToLower(tail[i]) {
		case "nx", "xx":
			if args.Existence != AnyExistence {
				return SetArgs{}, ErrSyntax
			}
			args.Existence = OnlyIfAbsent
			if strings.EqualFold(tail[i], "xx") {
				args.Existence = OnlyIfPresent
			}
		case "ex", "px":
			if args.Expiry != NoExpiry || i+1 >= len(tail) {
				return SetArgs{}, ErrSyntax
			}
			unit, limit := Seconds, int64(math.MaxInt64/int64(time.Second))
			if strings.EqualFold(tail[i], "px") {
				unit, limit = Milliseconds, int64(math.MaxInt64/int64(time.Millisecond))
			}
			n, err := strconv.ParseInt(tail[i+1], 10, 64)
			if err != nil || n <= 0 || n > limit {
				return SetArgs{}, ErrSyntax
			}
			args.Expiry, args.Amount = unit, n
			i++
		case "get":
			if args.Get {
				return SetArgs{}, ErrSyntax
			}
			args.Get = true
		default:
			return SetArgs{}, ErrSyntax
		}
	}
	return args, nil
}
