package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsatisfiable = errors.New("range not satisfiable")

// ByteRange is an inclusive span of bytes.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value.
func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange reads a Range header against a file of size bytes. Only the
// first range of a multi-range request is honoured. ok is false when the
// header is absent or malformed, in which case the whole file is served.
func ParseRange(header string, size int64) (r ByteRange, ok bool, err error) {
	set, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found {
		return ByteRange{}, false, nil
	}
	if first, _, multi := strings.Cut(set, ","); multi {
		set = first
	}
	from, to, found := strings.Cut(strings.TrimSpace(set), "-")
	if !found {
		return ByteRange{}, false, nil
	}

	if from == "" {
		// suffix: last n bytes
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false, nil
		}
		if size == 0 {
			return ByteRange{}, false, ErrUnsatisfiable
		}
		return ByteRange{Start: max(size-n, 0), End: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, false, nil
	}
	end := size - 1
	if to != "" {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil || end < start {
			return ByteRange{}, false, nil
		}
	}
	if start >= size {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	return ByteRange{Start: start, End: min(end, size-1)}, true, nil
}
